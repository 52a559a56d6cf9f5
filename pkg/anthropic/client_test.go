package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponseText(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "hello "},
			{Type: "thinking", Text: "ignored"},
			{Type: "text", Text: "world"},
		},
	}
	assert.Equal(t, "hello world", resp.Text())

	empty := &MessageResponse{}
	assert.Empty(t, empty.Text())
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
	}
	assert.InDelta(t, 18.0, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.Zero(t, usage.EstimateCost("unknown-model"))
}

func TestEstimateCostWithCache(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	// Write at 1.25x input rate, read at 0.1x.
	assert.InDelta(t, 3.0*1.25+3.0*0.1, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
}

func TestToSDKMessages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	assert.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
}

func TestToSDKSystemBlocksCacheControl(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
		{Text: "plain"},
	})
	assert.Len(t, blocks, 2)
	assert.Equal(t, "1h", string(blocks[0].CacheControl.TTL))
	assert.Equal(t, "plain", blocks[1].Text)
}
