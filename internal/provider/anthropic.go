package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/echolia/inference-gateway/internal/metrics"
	"github.com/echolia/inference-gateway/pkg/version"
)

// AnthropicCompatible talks to the Anthropic Messages API wire shape: a
// top-level system prompt plus a content-block array per message.
type AnthropicCompatible struct {
	name       string
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewAnthropicCompatible(name, baseURL, model, apiKey string) *AnthropicCompatible {
	return &AnthropicCompatible{
		name:       name,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (p *AnthropicCompatible) Name() string { return p.name }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicCompatible) Complete(ctx context.Context, systemMessage, userMessage string, params SamplingParams) (string, Usage, error) {
	start := time.Now()
	defer func() {
		metrics.ProviderDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	}()
	metrics.ProviderRequests.WithLabelValues(p.name).Inc()

	reqBody := anthropicRequest{
		Model:       p.model,
		System:      systemMessage,
		Messages:    []anthropicMessage{{Role: "user", Content: userMessage}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return p.fail(CategoryBadRequest, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return p.fail(CategoryBadRequest, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return p.fail(CategoryTransport, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return p.fail(CategoryTransport, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return p.fail(CategoryFromHTTPStatus(resp.StatusCode), fmt.Errorf("http %d", resp.StatusCode))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return p.fail(CategoryServer, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return p.fail(CategoryServer, fmt.Errorf("provider error: %s", parsed.Error.Message))
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return p.fail(CategoryServer, fmt.Errorf("empty content"))
	}

	metrics.ProviderTokens.WithLabelValues(p.name, "input").Add(float64(parsed.Usage.InputTokens))
	metrics.ProviderTokens.WithLabelValues(p.name, "output").Add(float64(parsed.Usage.OutputTokens))

	return text.String(), Usage{
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
	}, nil
}

func (p *AnthropicCompatible) fail(cat Category, err error) (string, Usage, error) {
	metrics.ProviderErrors.WithLabelValues(p.name, string(cat)).Inc()
	return "", Usage{}, &Error{Category: cat, Provider: p.name, Cause: err}
}
