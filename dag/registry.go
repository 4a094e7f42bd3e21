package dag

import (
	"fmt"
	"maps"
	"slices"
)

// Registry maps component names of a Pipeline to nodes. It is filled
// before ResolvePipeline and not meant for concurrent registration.
type Registry struct {
	nodes map[string]Node
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Node)}
}

// Register adds node under name. A name can be registered once.
func (r *Registry) Register(name string, node Node) error {
	if _, taken := r.nodes[name]; taken {
		return fmt.Errorf("dag: component %q already registered", name)
	}
	r.nodes[name] = node
	return nil
}

// Get returns the node registered under name.
func (r *Registry) Get(name string) (Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.nodes))
}
