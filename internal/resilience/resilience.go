// Package resilience guards calls to external services with a circuit breaker
// and bounded retries with exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned without calling the service while the breaker is open.
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrExhaustedRetries wraps the last failure once every attempt failed.
	ErrExhaustedRetries = errors.New("retry attempts exhausted")
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that WithRetry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	RandomFactor    float64
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		RandomFactor:    0.1,
	}
}

// WithRetry runs operation until it succeeds, fails permanently, the context
// ends or MaxAttempts is reached.
func WithRetry(ctx context.Context, logger *slog.Logger, cfg RetryConfig, operation func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	interval := cfg.InitialInterval

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		}
		if IsPermanent(err) || errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := jitter(interval, cfg.RandomFactor)
		logger.DebugContext(ctx, "Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_interval", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry abandoned: %w", ctx.Err())
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * cfg.Multiplier)
		if cfg.MaxInterval > 0 && interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhaustedRetries, cfg.MaxAttempts, lastErr)
}

func jitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + factor*(2*rand.Float64()-1)))
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	Name string
	// MaxFailures consecutive failed calls open the breaker.
	MaxFailures int
	// Cooldown is how long the breaker stays open before letting one probe through.
	Cooldown time.Duration
	Retry    RetryConfig
}

// Guard retries a call and counts the overall outcome in a circuit breaker.
// Permanent failures do not count against the breaker.
type Guard struct {
	cb     *gobreaker.CircuitBreaker
	retry  RetryConfig
	logger *slog.Logger
}

// NewGuard creates a guard. Zero values take conservative defaults.
func NewGuard(cfg GuardConfig, logger *slog.Logger) *Guard {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("breaker", cfg.Name)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	}

	return &Guard{
		cb:     gobreaker.NewCircuitBreaker(settings),
		retry:  cfg.Retry,
		logger: log,
	}
}

// Do runs operation with retries unless the breaker is open.
func (g *Guard) Do(ctx context.Context, operation func(context.Context) error) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, WithRetry(ctx, g.logger, g.retry, operation)
	})
	return err
}

// State returns the breaker state as "closed", "half-open" or "open".
func (g *Guard) State() string {
	return g.cb.State().String()
}
