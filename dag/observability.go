package dag

import (
	"context"
	"time"

	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/observability"
)

// aroundFunc runs next on behalf of the node called name.
type aroundFunc func(ctx context.Context, name string, next func(context.Context) (any, error)) (any, error)

type wrappedNode struct {
	inner  Node
	around aroundFunc
}

func wrap(node Node, around aroundFunc) Node {
	return &wrappedNode{inner: node, around: around}
}

func (n *wrappedNode) Name() string { return n.inner.Name() }

func (n *wrappedNode) Run(ctx context.Context, state *State) (any, error) {
	return n.around(ctx, n.inner.Name(), func(ctx context.Context) (any, error) {
		return n.inner.Run(ctx, state)
	})
}

// WithTracing runs node inside a span named "<prefix>.<node name>".
func WithTracing(node Node, prefix string) Node {
	return wrap(node, func(ctx context.Context, name string, next func(context.Context) (any, error)) (any, error) {
		ctx, span := observability.StartSpan(ctx, prefix+"."+name)
		defer span.End()
		observability.SetSpanAttribute(ctx, observability.AttrNode, name)

		out, err := next(ctx)
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
		return out, err
	})
}

// WithMetrics counts runs of node under stage, the plan node kind. With
// nil metrics node is returned as is.
func WithMetrics(node Node, stage string, metrics *observability.Metrics) Node {
	if metrics == nil {
		return node
	}
	return wrap(node, func(ctx context.Context, _ string, next func(context.Context) (any, error)) (any, error) {
		metrics.NodeStarted(ctx)
		start := time.Now()
		out, err := next(ctx)

		status := StatusCompleted
		if err != nil {
			status = StatusFailed
			metrics.RecordError(ctx, stage)
		}
		metrics.NodeFinished(ctx, stage, status, time.Since(start))
		return out, err
	})
}

// WithLogging logs failures of node at error level and completions at
// debug level.
func WithLogging(node Node, log *logger.Logger) Node {
	log = logger.OrNop(log)
	return wrap(node, func(ctx context.Context, name string, next func(context.Context) (any, error)) (any, error) {
		start := time.Now()
		out, err := next(ctx)

		fields := logger.DurationFields("dag.run", time.Since(start))
		fields[logger.FieldNode] = name
		if err != nil {
			log.WithError(err).Error("dag node failed", fields)
		} else {
			log.Debug("dag node completed", fields)
		}
		return out, err
	})
}
