package dag

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Node outcomes.
const (
	StatusCompleted      = "completed"
	StatusSkipped        = "skipped"
	StatusFailed         = "failed"
	StatusUpstreamFailed = "upstream_failed"
)

// Result holds the outcome of a graph execution.
type Result struct {
	NodeResults map[string]NodeResult
	Duration    time.Duration
}

// NodeResult holds the outcome of a single node execution.
type NodeResult struct {
	Name     string
	Status   string
	Attempts int
	Duration time.Duration
	Output   any
	Error    error
}

// Count returns how many nodes ended with status.
func (r *Result) Count(status string) int {
	n := 0
	for _, nr := range r.NodeResults {
		if nr.Status == status {
			n++
		}
	}
	return n
}

// Failed returns the names of failed nodes, sorted.
func (r *Result) Failed() []string {
	var out []string
	for name, nr := range r.NodeResults {
		if nr.Status == StatusFailed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Err joins the errors of all failed nodes, in name order. Nil when none failed.
func (r *Result) Err() error {
	var errs []error
	for _, name := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", name, r.NodeResults[name].Error))
	}
	return errors.Join(errs...)
}
