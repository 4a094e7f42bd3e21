package dag

import (
	"context"
)

// Node is the execution unit in a DAG.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

// NodeFunc adapts a function to Node.
func NodeFunc(name string, fn func(ctx context.Context, state *State) (any, error)) Node {
	return &funcNode{name: name, fn: fn}
}

// Noop returns a node that does nothing. Used for join and split points.
func Noop(name string) Node {
	return &funcNode{name: name}
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (any, error)
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) {
	if n.fn == nil {
		return nil, nil
	}
	return n.fn(ctx, state)
}
