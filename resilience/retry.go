package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	apperrors "github.com/kbukum/recflow/errors"
)

// RetryConfig controls how often and how fast a failed step is re-run.
// The tagged fields come from the run.retry section of the workspace file.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	BackoffFactor  float64       `mapstructure:"backoff_factor" yaml:"backoff_factor" validate:"gte=0"`
	// Jitter spreads each pause by up to this fraction in both directions.
	Jitter float64 `mapstructure:"jitter" yaml:"jitter" validate:"gte=0,lte=1"`

	// RetryIf decides whether err is worth another attempt. Nil means
	// DefaultRetryIf.
	RetryIf func(err error) bool `mapstructure:"-" yaml:"-"`
	// OnRetry observes a failed attempt right before the pause.
	OnRetry func(attempt int, err error, pause time.Duration) `mapstructure:"-" yaml:"-"`
}

// Enabled reports whether a failed call gets a second attempt.
func (c RetryConfig) Enabled() bool { return c.MaxAttempts > 1 }

// DefaultRetryConfig is three attempts, doubling from 100ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// DefaultRetryIf refuses cancelled contexts and application errors that are
// not flagged retryable. A failing script is deterministic and never
// retried; a plain error (say a flaky mount) is.
func DefaultRetryIf(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return apperrors.IsRetryable(err)
	}
	return true
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// Delay is the pause after the given number of failed attempts:
// InitialBackoff grown by BackoffFactor per failure, capped at MaxBackoff
// and spread by Jitter.
func (c RetryConfig) Delay(failed int) time.Duration {
	if failed < 1 {
		failed = 1
	}
	pause := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(failed-1))
	pause = math.Min(pause, float64(c.MaxBackoff))
	if c.Jitter > 0 {
		pause += pause * c.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(0, math.Min(pause, float64(c.MaxBackoff))))
}

// Retry calls fn until it succeeds, RetryIf refuses its error, the attempts
// run out or ctx is done. The last result and error of fn are returned
// as is; a done context returns ctx.Err().
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		out, err := fn()
		if err == nil || attempt >= cfg.MaxAttempts || !cfg.RetryIf(err) {
			return out, err
		}

		pause := cfg.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, pause)
		}
		if err := sleep(ctx, pause); err != nil {
			var zero T
			return zero, err
		}
	}
}

// RetryFunc is Retry for calls without a result.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
