package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoValSucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("overloaded"), 529)
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, val)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid request")
	_, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("boom"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("boom"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValCallsOnRetry(t *testing.T) {
	var attempts []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}
	_, _ = DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(errors.New("boom"), 500)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return NewTransientError(errors.New("boom"), 429)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second}
	first := backoff(0, cfg)
	assert.GreaterOrEqual(t, first, time.Second)
	assert.LessOrEqual(t, first, 1500*time.Millisecond)

	deep := backoff(10, cfg)
	assert.LessOrEqual(t, deep, 6*time.Second)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", NewTransientError(errors.New("x"), 503), true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"overloaded message", errors.New("api error: Overloaded"), true},
		{"plain error", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
