package runner

import (
	"context"
	"time"

	"github.com/kbukum/recflow/dag"
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/observability"
	"github.com/kbukum/recflow/plan"
	"github.com/kbukum/recflow/resilience"
	"github.com/kbukum/recflow/step"
)

const (
	rootPipeline = "run"
	spanPrefix   = "recflow"
)

// Graph runs plans on a dag.Engine.
type Graph struct {
	engine  *dag.Engine
	async   bool
	metrics *observability.Metrics
	log     *logger.Logger
}

// GraphOption configures a Graph scheduler.
type GraphOption func(*Graph)

// WithMaxParallel limits concurrently running nodes.
func WithMaxParallel(n int) GraphOption {
	return func(g *Graph) { g.engine.MaxParallel = n }
}

// WithRetry re-runs failed nodes according to cfg.
func WithRetry(cfg resilience.RetryConfig) GraphOption {
	return func(g *Graph) { g.engine.Retry = &cfg }
}

// WithAsync makes Submit return before the run ends.
func WithAsync(async bool) GraphOption {
	return func(g *Graph) { g.async = async }
}

// WithMetrics records node metrics.
func WithMetrics(m *observability.Metrics) GraphOption {
	return func(g *Graph) { g.metrics = m }
}

// NewGraph creates a graph scheduler.
func NewGraph(log *logger.Logger, opts ...GraphOption) *Graph {
	g := &Graph{
		engine: &dag.Engine{},
		log:    logger.OrNop(log).WithComponent("runner.graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit converts p to a pipeline and executes it. Node errors are recorded
// in the report. With opts.Debug they are also returned, joined.
func (g *Graph) Submit(ctx context.Context, p *plan.Plan, opts step.RunOptions) (*Report, error) {
	graph, err := g.resolve(p, opts)
	if err != nil {
		return nil, err
	}

	if !g.async {
		return g.execute(ctx, p, graph, opts)
	}
	h := newHandle()
	go func() {
		h.finish(g.execute(ctx, p, graph, opts))
	}()
	return &Report{Mode: ModeParallel, handle: h}, nil
}

func (g *Graph) resolve(p *plan.Plan, opts step.RunOptions) (*dag.Graph, error) {
	root, loader := Pipelines(p)
	reg := dag.NewRegistry()
	for _, n := range p.Nodes() {
		if err := reg.Register(n.Key.String(), g.wrap(n, opts)); err != nil {
			return nil, err
		}
	}
	return dag.ResolvePipeline(root, reg, loader)
}

func (g *Graph) wrap(n *plan.Node, opts step.RunOptions) dag.Node {
	var node dag.Node
	if n.Kind == plan.KindStep {
		st := n.Step
		node = dag.NodeFunc(n.Key.String(), func(ctx context.Context, _ *dag.State) (any, error) {
			observability.SetSpanAttribute(ctx, observability.AttrRecordID, st.RecordID())
			observability.SetSpanAttribute(ctx, observability.AttrStepLabel, st.Label())
			if err := st.Run(ctx, opts); err != nil {
				return nil, err
			}
			return st.Status(), nil
		})
	} else {
		node = dag.Noop(n.Key.String())
	}
	node = dag.WithMetrics(node, string(n.Kind), g.metrics)
	node = dag.WithTracing(node, spanPrefix)
	if n.Kind == plan.KindStep {
		node = dag.WithLogging(node, g.log.WithFields(stepFields(n.Step)))
	}
	return node
}

func (g *Graph) execute(ctx context.Context, p *plan.Plan, graph *dag.Graph, opts step.RunOptions) (*Report, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrMode, string(ModeParallel))
	observability.SetSpanAttribute(ctx, observability.AttrNodeCount, p.Len())

	byName := make(map[string]*plan.Node, p.Len())
	for _, n := range p.Nodes() {
		byName[n.Key.String()] = n
	}
	filter := func(name string, _ *dag.State) bool {
		n, ok := byName[name]
		if !ok || n.Kind != plan.KindStep {
			return true
		}
		return opts.Selects(n.Label())
	}

	start := time.Now()
	res, err := g.engine.ExecuteFiltered(ctx, graph, dag.NewState(), filter)
	report := &Report{Mode: ModeParallel, Duration: time.Since(start)}
	if res != nil {
		for _, n := range p.Nodes() {
			nr := res.NodeResults[n.Key.String()]
			report.Nodes = append(report.Nodes, Outcome{
				Key:      n.Key,
				Kind:     n.Kind,
				Status:   nr.Status,
				Attempts: nr.Attempts,
				Duration: nr.Duration,
				Err:      nr.Error,
			})
		}
	}
	if err != nil {
		observability.SetSpanError(ctx, err)
		return report, err
	}

	if runErr := report.Err(); runErr != nil {
		observability.SetSpanError(ctx, runErr)
		if opts.Debug {
			return report, runErr
		}
		g.log.WithError(runErr).Error("graph run finished with failed nodes", logger.Fields(
			"failed", len(res.Failed()),
		))
	}
	return report, nil
}
