package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/recflow/dag"
	"github.com/kbukum/recflow/plan"
)

// Outcome statuses, shared with the graph engine.
const (
	StatusCompleted      = dag.StatusCompleted
	StatusSkipped        = dag.StatusSkipped
	StatusFailed         = dag.StatusFailed
	StatusUpstreamFailed = dag.StatusUpstreamFailed
)

// Outcome is the result of one plan node.
type Outcome struct {
	Key      plan.Key
	Kind     plan.Kind
	Status   string
	Attempts int
	Duration time.Duration
	Err      error
}

// Report summarizes one submission. Nodes follow plan order.
type Report struct {
	Mode     Mode
	Nodes    []Outcome
	Duration time.Duration

	handle *Handle
}

// Pending reports whether the run is still in flight. Use Wait for the
// final report.
func (r *Report) Pending() bool {
	if r.handle == nil {
		return false
	}
	select {
	case <-r.handle.done:
		return false
	default:
		return true
	}
}

// Wait blocks until an asynchronous run ends. For synchronous runs it
// returns r.
func (r *Report) Wait() (*Report, error) {
	if r.handle == nil {
		return r, nil
	}
	return r.handle.Wait()
}

// Outcome returns the outcome of the node with key k.
func (r *Report) Outcome(k plan.Key) (Outcome, bool) {
	for _, o := range r.Nodes {
		if o.Key == k {
			return o, true
		}
	}
	return Outcome{}, false
}

// Count returns how many step nodes ended with status.
func (r *Report) Count(status string) int {
	n := 0
	for _, o := range r.Nodes {
		if o.Kind == plan.KindStep && o.Status == status {
			n++
		}
	}
	return n
}

// Err joins the errors of failed nodes.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Nodes {
		if o.Status == StatusFailed && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Key, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Handle tracks an asynchronous run.
type Handle struct {
	done   chan struct{}
	report *Report
	err    error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) finish(r *Report, err error) {
	h.report, h.err = r, err
	close(h.done)
}

// Done is closed when the run ends.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run ends and returns its report.
func (h *Handle) Wait() (*Report, error) {
	<-h.done
	return h.report, h.err
}
