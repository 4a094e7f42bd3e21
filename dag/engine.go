package dag

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/recflow/resilience"
)

// Engine executes a graph in dependency order.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
	// Retry, when enabled, re-runs failed nodes.
	Retry *resilience.RetryConfig
}

// NodeFilter returns true if a node should execute.
type NodeFilter func(nodeName string, state *State) bool

// ExecuteBatch runs ALL nodes in dependency order.
func (e *Engine) ExecuteBatch(ctx context.Context, g *Graph, state *State) (*Result, error) {
	return e.execute(ctx, g, state, nil)
}

// ExecuteFiltered runs only nodes that pass the filter.
// Nodes that don't pass are marked as skipped.
func (e *Engine) ExecuteFiltered(ctx context.Context, g *Graph, state *State, filter NodeFilter) (*Result, error) {
	return e.execute(ctx, g, state, filter)
}

func (e *Engine) execute(ctx context.Context, g *Graph, state *State, filter NodeFilter) (*Result, error) {
	start := time.Now()

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}
	deps := g.Dependencies()

	result := &Result{
		NodeResults: make(map[string]NodeResult, len(g.Nodes)),
	}

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var toRun []string
		for _, name := range level {
			if upstreamFailed(result, deps[name]) {
				result.NodeResults[name] = NodeResult{Name: name, Status: StatusUpstreamFailed}
				continue
			}
			if filter != nil && !filter(name, state) {
				result.NodeResults[name] = NodeResult{Name: name, Status: StatusSkipped}
				continue
			}
			toRun = append(toRun, name)
		}

		if len(toRun) == 0 {
			continue
		}
		if err := e.executeLevel(ctx, g, state, toRun, result); err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func upstreamFailed(result *Result, deps []string) bool {
	for _, d := range deps {
		switch result.NodeResults[d].Status {
		case StatusFailed, StatusUpstreamFailed:
			return true
		}
	}
	return false
}

// executeLevel runs names concurrently. Node errors are recorded in result,
// never returned, so one failure does not cancel its siblings.
func (e *Engine) executeLevel(ctx context.Context, g *Graph, state *State, names []string, result *Result) error {
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency(len(names)))

	for _, name := range names {
		node := g.Nodes[name]
		eg.Go(func() error {
			nr := e.executeNode(egCtx, name, node, state)
			mu.Lock()
			result.NodeResults[name] = nr
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return ctx.Err()
}

func (e *Engine) executeNode(ctx context.Context, name string, node Node, state *State) NodeResult {
	start := time.Now()
	attempts := 0
	run := func() (any, error) {
		attempts++
		return node.Run(ctx, state)
	}

	var (
		output any
		err    error
	)
	if e.Retry != nil && e.Retry.Enabled() {
		output, err = resilience.Retry(ctx, *e.Retry, run)
	} else {
		output, err = run()
	}

	nr := NodeResult{
		Name:     name,
		Status:   StatusCompleted,
		Attempts: attempts,
		Duration: time.Since(start),
		Output:   output,
	}
	switch {
	case err != nil:
		nr.Status = StatusFailed
		nr.Output = nil
		nr.Error = err
	case output != nil:
		state.Set(name, output)
	}
	return nr
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}
