package marathon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartland-scout/scout-cli/pkg/anthropic"
)

type captureAnthropic struct {
	req anthropic.MessageRequest
}

func (c *captureAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.req = req
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "ok"}},
	}, nil
}

func TestAnthropicLLMAppliesSamplingAndCaching(t *testing.T) {
	client := &captureAnthropic{}
	llm := NewAnthropicLLM(client, AnthropicLLMConfig{
		Model:       "claude-sonnet-4-5-20250929",
		MaxTokens:   4096,
		Temperature: 0.2,
		CacheTTL:    "5m",
	})

	out, err := llm.Complete(context.Background(), "knowledge_integrator", "system prompt", "context")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	assert.Equal(t, "claude-sonnet-4-5-20250929", client.req.Model)
	assert.EqualValues(t, 4096, client.req.MaxTokens)
	require.NotNil(t, client.req.Temperature)
	assert.InDelta(t, 0.2, *client.req.Temperature, 1e-9)
	require.Len(t, client.req.System, 1)
	require.NotNil(t, client.req.System[0].CacheControl)
	assert.Equal(t, "5m", client.req.System[0].CacheControl.TTL)
}

func TestAnthropicLLMZeroConfigOmitsOptionalFields(t *testing.T) {
	client := &captureAnthropic{}
	llm := NewAnthropicLLM(client, AnthropicLLMConfig{Model: "m", MaxTokens: 100})

	_, err := llm.Complete(context.Background(), "scout", "system prompt", "context")
	require.NoError(t, err)

	assert.Nil(t, client.req.Temperature)
	require.Len(t, client.req.System, 1)
	assert.Nil(t, client.req.System[0].CacheControl)
}
