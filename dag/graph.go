package dag

import (
	"fmt"
	"slices"
)

// Graph is a set of named nodes and the edges between them.
type Graph struct {
	Nodes map[string]Node
	Edges []Edge
}

// Edge makes To wait for From.
type Edge struct {
	From string
	To   string
}

// Dependencies maps each node to the sorted, distinct nodes it waits for.
func (g *Graph) Dependencies() map[string][]string {
	deps := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		deps[e.To] = append(deps[e.To], e.From)
	}
	for name, from := range deps {
		slices.Sort(from)
		deps[name] = slices.Compact(from)
	}
	return deps
}

// BuildLevels groups the nodes of g by depth: a node sits one level below
// the deepest node it waits for, so every level only depends on earlier
// ones. Names inside a level are sorted.
func BuildLevels(g *Graph) ([][]string, error) {
	for _, e := range g.Edges {
		for _, end := range [2]string{e.From, e.To} {
			if _, ok := g.Nodes[end]; !ok {
				return nil, fmt.Errorf("dag: edge %s -> %s references unknown node %q", e.From, e.To, end)
			}
		}
	}

	deps := g.Dependencies()
	depth := make(map[string]int, len(g.Nodes))
	visiting := make(map[string]bool)

	var visit func(name string) (int, error)
	visit = func(name string) (int, error) {
		if d, ok := depth[name]; ok {
			return d, nil
		}
		if visiting[name] {
			return 0, fmt.Errorf("dag: cycle detected at node %q", name)
		}
		visiting[name] = true
		d := 0
		for _, dep := range deps[name] {
			dd, err := visit(dep)
			if err != nil {
				return 0, err
			}
			d = max(d, dd+1)
		}
		visiting[name] = false
		depth[name] = d
		return d, nil
	}

	var levels [][]string
	for name := range g.Nodes {
		d, err := visit(name)
		if err != nil {
			return nil, err
		}
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], name)
	}
	for _, level := range levels {
		slices.Sort(level)
	}
	return levels, nil
}
