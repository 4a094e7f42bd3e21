package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/kbukum/recflow/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 1}
}

func TestRetry(t *testing.T) {
	flaky := errors.New("nfs stale handle")
	script := apperrors.ScriptFailed("preprocess", errors.New("exit status 1"))

	tests := []struct {
		name      string
		cfg       RetryConfig
		failFirst int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{"first attempt succeeds", fastRetry(3), 0, nil, 1, nil},
		{"recovers on third attempt", fastRetry(3), 2, flaky, 3, nil},
		{"attempts run out", fastRetry(3), 10, flaky, 3, flaky},
		{"script failure not retried", fastRetry(3), 10, script, 1, script},
		{"single attempt", fastRetry(1), 10, flaky, 1, flaky},
		{"zero attempts defaults to three", RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, 10, flaky, 3, flaky},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			out, err := Retry(context.Background(), tt.cfg, func() (string, error) {
				calls++
				if calls <= tt.failFirst {
					return "", tt.failWith
				}
				return "RES/REC-1.csv", nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && out != "RES/REC-1.csv" {
				t.Errorf("out = %q", out)
			}
		})
	}
}

func TestRetryStopsOnContext(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := RetryFunc(ctx, cfg, func() error {
		calls++
		return errors.New("busy")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if calls >= 10 {
		t.Errorf("calls = %d, expected the deadline to cut retries short", calls)
	}
}

func TestRetryCustomPredicateAndHook(t *testing.T) {
	transient := errors.New("transient")
	cfg := fastRetry(4)
	cfg.RetryIf = func(err error) bool { return errors.Is(err, transient) }
	var seen []int
	cfg.OnRetry = func(attempt int, err error, pause time.Duration) {
		if !errors.Is(err, transient) || pause <= 0 {
			t.Errorf("hook got err=%v pause=%v", err, pause)
		}
		seen = append(seen, attempt)
	}

	err := RetryFunc(context.Background(), cfg, func() error { return transient })
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("hook attempts = %v, want [1 2 3]", seen)
	}

	seen = nil
	permanent := errors.New("permanent")
	if err := RetryFunc(context.Background(), cfg, func() error { return permanent }); !errors.Is(err, permanent) {
		t.Fatalf("err = %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("hook called for refused error: %v", seen)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("flaky"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"retryable app error", apperrors.IO("write", "/tmp/x", errors.New("disk")), true},
		{"script failure", apperrors.ScriptFailed("preprocess", errors.New("boom")), false},
		{"configuration", apperrors.Configuration("bad mode %q", "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryConfigEnabled(t *testing.T) {
	if (RetryConfig{}).Enabled() {
		t.Error("zero config must not be enabled")
	}
	if !(RetryConfig{MaxAttempts: 2}).Enabled() {
		t.Error("two attempts must be enabled")
	}
}

func TestDelay(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2}
	want := []time.Duration{100, 100, 200, 400, 800, 1000, 1000}
	for failed, ms := range want {
		if got := cfg.Delay(failed); got != ms*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want %v", failed, got, ms*time.Millisecond)
		}
	}

	cfg.Jitter = 0.5
	for range 50 {
		if d := cfg.Delay(2); d < 100*time.Millisecond || d > 300*time.Millisecond {
			t.Fatalf("jittered Delay(2) = %v outside [100ms, 300ms]", d)
		}
	}
}
