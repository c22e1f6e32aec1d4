package provider

import (
	"context"
	"strings"

	"github.com/echolia/inference-gateway/internal/metrics"
)

// Echo is a mock backend for tests and local development: it returns a
// fixed or echoed response without any network call. FixedResponse, if
// set, is returned verbatim; otherwise Echo returns the user message
// verbatim. Producing a valid task result shape is the caller's
// responsibility, not this backend's.
type Echo struct {
	FixedResponse string
	FailWith      *Error
}

func NewEcho(fixedResponse string) *Echo {
	return &Echo{FixedResponse: fixedResponse}
}

func (p *Echo) Name() string { return "echo" }

func (p *Echo) Complete(ctx context.Context, systemMessage, userMessage string, params SamplingParams) (string, Usage, error) {
	metrics.ProviderRequests.WithLabelValues(p.Name()).Inc()

	if p.FailWith != nil {
		metrics.ProviderErrors.WithLabelValues(p.Name(), string(p.FailWith.Category)).Inc()
		return "", Usage{}, p.FailWith
	}

	text := p.FixedResponse
	if text == "" {
		text = userMessage
	}
	usage := Usage{PromptTokens: len(strings.Fields(userMessage)), CompletionTokens: len(strings.Fields(text))}
	metrics.ProviderTokens.WithLabelValues(p.Name(), "input").Add(float64(usage.PromptTokens))
	metrics.ProviderTokens.WithLabelValues(p.Name(), "output").Add(float64(usage.CompletionTokens))
	return text, usage, nil
}
