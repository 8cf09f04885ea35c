package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{name: "first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "recovers", failures: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantCalls: 3, wantErr: ErrExhaustedRetries},
		{name: "permanent", failures: 5, permanent: true, attempts: 3, wantCalls: 1, wantErr: errBoom},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			err := WithRetry(context.Background(), discard(), fastRetry(tt.attempts), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errBoom)
					}
					return errBoom
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, errBoom)
		})
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := WithRetry(ctx, discard(), RetryConfig{MaxAttempts: 5, InitialInterval: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanent(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errors.New("x")))

	base := errors.New("bad request")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "bad request", err.Error())
}

func TestGuardOpensAfterFailures(t *testing.T) {
	t.Parallel()
	g := NewGuard(GuardConfig{Name: "test", MaxFailures: 2, Cooldown: time.Hour, Retry: fastRetry(1)}, discard())
	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("unavailable")
	}

	require.Error(t, g.Do(context.Background(), failing))
	require.Error(t, g.Do(context.Background(), failing))
	assert.Equal(t, "open", g.State())

	err := g.Do(context.Background(), failing)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestGuardIgnoresPermanentFailures(t *testing.T) {
	t.Parallel()
	g := NewGuard(GuardConfig{Name: "test", MaxFailures: 1, Cooldown: time.Hour, Retry: fastRetry(2)}, discard())

	for i := 0; i < 3; i++ {
		err := g.Do(context.Background(), func(context.Context) error { return Permanent(errors.New("not found")) })
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	}
	assert.Equal(t, "closed", g.State())
}
