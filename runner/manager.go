package runner

import (
	"context"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/plan"
	"github.com/kbukum/recflow/step"
)

// Manager builds plans and hands them to the configured scheduler.
type Manager struct {
	mode      Mode
	scheduler Scheduler
	graphOpts []GraphOption
	log       *logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler replaces the scheduler selected by the configured mode.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithGraphOptions adds options to the graph scheduler built for
// ModeParallel.
func WithGraphOptions(opts ...GraphOption) Option {
	return func(m *Manager) { m.graphOpts = append(m.graphOpts, opts...) }
}

// New creates a Manager for cfg. An unknown mode is a configuration error.
func New(cfg Config, log *logger.Logger, opts ...Option) (*Manager, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, errors.Configuration("run.mode: %v", err)
	}
	m := &Manager{mode: mode, log: logger.OrNop(log).WithComponent("runner")}
	for _, opt := range opts {
		opt(m)
	}
	if m.scheduler != nil {
		return m, nil
	}

	switch mode {
	case ModeParallel:
		gopts := []GraphOption{WithMaxParallel(cfg.MaxParallel), WithAsync(cfg.Asynchronous)}
		if cfg.Retry.Enabled() {
			gopts = append(gopts, WithRetry(cfg.Retry))
		}
		m.scheduler = NewGraph(log, append(gopts, m.graphOpts...)...)
	default:
		m.scheduler = NewSequential(log)
	}
	return m, nil
}

// Mode returns the configured mode.
func (m *Manager) Mode() Mode { return m.mode }

// Scheduler returns the scheduler plans are submitted to.
func (m *Manager) Scheduler() Scheduler { return m.scheduler }

// Plan builds the plan for records without running it.
func (m *Manager) Plan(records []plan.RecordSteps) (*plan.Plan, error) {
	return plan.Build(records)
}

// Run builds the plan for records and submits it.
func (m *Manager) Run(ctx context.Context, records []plan.RecordSteps, opts step.RunOptions) (*Report, error) {
	p, err := plan.Build(records)
	if err != nil {
		return nil, err
	}

	m.log.Info("run submitted", logger.Fields(
		"mode", string(m.mode),
		"records", len(p.Records()),
		"steps", len(p.Steps()),
		"nodes", p.Len(),
		logger.FieldStepLabel, opts.StepLabel,
		"force", opts.Force,
	))

	report, err := m.scheduler.Submit(ctx, p, opts)
	if report != nil && !report.Pending() {
		m.log.Info("run finished", logger.Fields(
			"completed", report.Count(StatusCompleted),
			"skipped", report.Count(StatusSkipped),
			"failed", report.Count(StatusFailed),
			"upstream_failed", report.Count(StatusUpstreamFailed),
			logger.FieldDuration, report.Duration.Milliseconds(),
		))
	}
	return report, err
}
