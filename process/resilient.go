package process

import (
	"context"
	"time"

	"github.com/kbukum/recflow/resilience"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// MaxConcurrent bounds subprocesses running at once. Zero means 4.
	MaxConcurrent int
	// MaxWait is how long a call waits for a free slot. Zero waits until ctx is done.
	MaxWait time.Duration
	// GracePeriod is applied to commands that do not set their own.
	GracePeriod time.Duration
	// Retry, when set, re-runs failed commands.
	Retry *resilience.RetryConfig
}

// Runner executes subprocesses through a shared bulkhead, so parallel
// step execution cannot start an unbounded number of processes.
type Runner struct {
	cfg      RunnerConfig
	bulkhead *resilience.Bulkhead
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = resilience.WaitForever
	}
	return &Runner{
		cfg: cfg,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "process",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       maxWait,
		}),
	}
}

// Run executes cmd once a bulkhead slot is free.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.GracePeriod == 0 {
		cmd.GracePeriod = r.cfg.GracePeriod
	}
	return resilience.ExecuteWithResult(r.bulkhead, ctx, func() (*Result, error) {
		if r.cfg.Retry == nil {
			return Run(ctx, cmd)
		}
		return resilience.Retry(ctx, *r.cfg.Retry, func() (*Result, error) {
			return Run(ctx, cmd)
		})
	})
}

// InUse returns the number of subprocesses currently running.
func (r *Runner) InUse() int { return r.bulkhead.InUse() }
