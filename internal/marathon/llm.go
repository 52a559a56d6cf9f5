package marathon

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/heartland-scout/scout-cli/internal/resilience"
	"github.com/heartland-scout/scout-cli/pkg/anthropic"
)

// LLM is the narrow completion interface consumed by the pipeline stages.
// Stages always pass a fixed system instruction plus assembled context and
// get back a single text response.
type LLM interface {
	Complete(ctx context.Context, stage, system, prompt string) (string, error)
}

// AnthropicLLMConfig carries the sampling and caching settings applied to
// every completion.
type AnthropicLLMConfig struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	// CacheTTL enables prompt caching of the per-stage system prompt when
	// non-empty ("5m" or "1h"). System prompts are static per stage, so
	// repeated cycles hit the cache.
	CacheTTL string
}

type anthropicLLM struct {
	client anthropic.Client
	cfg    AnthropicLLMConfig
	retry  resilience.RetryConfig
}

// NewAnthropicLLM adapts the Anthropic client to the pipeline's LLM
// interface, with retry on transient API failures.
func NewAnthropicLLM(client anthropic.Client, cfg AnthropicLLMConfig) LLM {
	return &anthropicLLM{
		client: client,
		cfg:    cfg,
		retry:  resilience.DefaultRetryConfig(),
	}
}

func (l *anthropicLLM) Complete(ctx context.Context, stage, system, prompt string) (string, error) {
	retryCfg := l.retry
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", stage)

	req := anthropic.MessageRequest{
		Model:     l.cfg.Model,
		MaxTokens: l.cfg.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: system}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	}
	if l.cfg.Temperature > 0 {
		req.Temperature = &l.cfg.Temperature
	}
	if l.cfg.CacheTTL != "" {
		req.System[0].CacheControl = &anthropic.CacheControl{TTL: l.cfg.CacheTTL}
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return l.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "llm: %s completion", stage)
	}

	resp.Usage.LogCost(l.cfg.Model, stage)
	return resp.Text(), nil
}
