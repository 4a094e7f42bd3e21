package runner

import (
	"context"
	"time"

	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/plan"
	"github.com/kbukum/recflow/step"
)

// Scheduler executes a plan.
type Scheduler interface {
	Submit(ctx context.Context, p *plan.Plan, opts step.RunOptions) (*Report, error)
}

// Sequential runs step nodes one after another in plan order.
type Sequential struct {
	log *logger.Logger
}

// NewSequential creates a sequential scheduler.
func NewSequential(log *logger.Logger) *Sequential {
	return &Sequential{log: logger.OrNop(log).WithComponent("runner.sequential")}
}

// Submit runs every selected step. With opts.Debug the first step error is
// returned immediately; otherwise errors are logged and the run continues.
func (s *Sequential) Submit(ctx context.Context, p *plan.Plan, opts step.RunOptions) (*Report, error) {
	start := time.Now()
	report := &Report{Mode: ModeMainProcess, Nodes: make([]Outcome, 0, p.Len())}

	for _, n := range p.Nodes() {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		o := Outcome{Key: n.Key, Kind: n.Kind, Status: StatusCompleted}
		if n.Kind != plan.KindStep {
			report.Nodes = append(report.Nodes, o)
			continue
		}
		if !opts.Selects(n.Label()) {
			o.Status = StatusSkipped
			report.Nodes = append(report.Nodes, o)
			continue
		}

		stepStart := time.Now()
		err := n.Step.Run(ctx, opts)
		o.Attempts = 1
		o.Duration = time.Since(stepStart)
		if err != nil {
			o.Status = StatusFailed
			o.Err = err
			report.Nodes = append(report.Nodes, o)
			if opts.Debug {
				report.Duration = time.Since(start)
				return report, err
			}
			s.log.WithError(err).Error("step failed", stepFields(n.Step))
			continue
		}
		report.Nodes = append(report.Nodes, o)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func stepFields(st *step.Step) map[string]interface{} {
	u := st.Scope()
	return logger.Fields(
		logger.FieldRecordID, st.RecordID(),
		logger.FieldTask, u.Task,
		logger.FieldModality, u.Modality,
		logger.FieldStepLabel, st.Label(),
	)
}
