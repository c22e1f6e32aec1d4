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

// OpenAICompatible talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, or a self-hosted gateway exposing the same wire shape).
type OpenAICompatible struct {
	name       string
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewOpenAICompatible(name, baseURL, model, apiKey string) *OpenAICompatible {
	return &OpenAICompatible{
		name:       name,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (p *OpenAICompatible) Name() string { return p.name }

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAICompatible) Complete(ctx context.Context, systemMessage, userMessage string, params SamplingParams) (string, Usage, error) {
	start := time.Now()
	defer func() {
		metrics.ProviderDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
	}()
	metrics.ProviderRequests.WithLabelValues(p.name).Inc()

	reqBody := openAIChatRequest{
		Model: p.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: userMessage},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return p.fail(CategoryBadRequest, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return p.fail(CategoryBadRequest, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
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

	var parsed openAIChatResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return p.fail(CategoryServer, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return p.fail(CategoryServer, fmt.Errorf("empty choices"))
	}

	metrics.ProviderTokens.WithLabelValues(p.name, "input").Add(float64(parsed.Usage.PromptTokens))
	metrics.ProviderTokens.WithLabelValues(p.name, "output").Add(float64(parsed.Usage.CompletionTokens))

	return parsed.Choices[0].Message.Content, Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

func (p *OpenAICompatible) fail(cat Category, err error) (string, Usage, error) {
	metrics.ProviderErrors.WithLabelValues(p.name, string(cat)).Inc()
	return "", Usage{}, &Error{Category: cat, Provider: p.name, Cause: err}
}
