package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealToken-Community/gainorloss/internal/errors"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(4), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.NewProviderError("subgraph", fmt.Errorf("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(4), func(ctx context.Context, attempt int) error {
		calls++
		return errors.NewInvalidAddressError("0xbad")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "user errors must not be retried")
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	cause := errors.NewProviderError("subgraph", fmt.Errorf("down"))
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	// The categorized cause stays reachable through the wrapper.
	assert.Equal(t, "PROVIDER_ERROR", errors.Categorize(err).Code)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, &Config{MaxAttempts: 10, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1},
		func(ctx context.Context, attempt int) error {
			calls++
			cancel()
			return errors.NewProviderError("subgraph", fmt.Errorf("down"))
		})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	cfg := &Config{
		MaxAttempts:  10,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 500*time.Millisecond, backoffDelay(cfg, 1))
	assert.Equal(t, time.Second, backoffDelay(cfg, 2))
	assert.Equal(t, 10*time.Second, backoffDelay(cfg, 30))
}
