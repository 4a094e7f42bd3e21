package plan

import (
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/step"
)

// Kind classifies plan nodes.
type Kind string

// Node kinds.
const (
	KindSource Kind = "source"
	KindStep   Kind = "step"
	KindSplit  Kind = "split"
	KindJoin   Kind = "join"
)

// Stages of synthetic nodes. Step and split nodes use the step label.
const (
	StageRaw    = "raw"
	StageTask   = "task"
	StageRecord = "record"
)

// Key identifies a node.
type Key struct {
	Stage string
	Name  string
}

// String renders the key as "stage:name".
func (k Key) String() string { return k.Stage + ":" + k.Name }

// Node is one vertex of a plan.
type Node struct {
	Key      Key
	Kind     Kind
	RecordID string
	// Unit is empty for source nodes and record joins, task-only for task joins.
	Unit scope.Scope
	Deps []Key
	// Step is set for KindStep nodes only.
	Step *step.Step
}

// Label returns the step label of step and split nodes, or "".
func (n *Node) Label() string {
	if n.Kind == KindStep || n.Kind == KindSplit {
		return n.Key.Stage
	}
	return ""
}

// Plan is an ordered set of nodes with dependencies.
type Plan struct {
	nodes  []*Node
	index  map[Key]*Node
	merged bool
}

func newPlan() *Plan {
	return &Plan{index: make(map[Key]*Node)}
}

func (p *Plan) add(n *Node) {
	p.nodes = append(p.nodes, n)
	p.index[n.Key] = n
}

// Nodes returns the nodes in insertion order.
func (p *Plan) Nodes() []*Node { return p.nodes }

// Node returns the node with key k.
func (p *Plan) Node(k Key) (*Node, bool) {
	n, ok := p.index[k]
	return n, ok
}

// Len returns the number of nodes.
func (p *Plan) Len() int { return len(p.nodes) }

// Records returns the record ids in the plan, in first-seen order.
func (p *Plan) Records() []string {
	var ids []string
	for _, n := range p.nodes {
		if n.Kind == KindJoin && n.Key.Stage == StageRecord {
			ids = append(ids, n.RecordID)
		}
	}
	return ids
}

// Steps returns the bound steps in execution order.
func (p *Plan) Steps() []*step.Step {
	var steps []*step.Step
	for _, n := range p.nodes {
		if n.Kind == KindStep {
			steps = append(steps, n.Step)
		}
	}
	return steps
}

// Count returns how many nodes are of kind k.
func (p *Plan) Count(k Kind) int {
	c := 0
	for _, n := range p.nodes {
		if n.Kind == k {
			c++
		}
	}
	return c
}
