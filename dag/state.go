package dag

import (
	"fmt"
	"maps"
	"sync"
)

// State carries node outputs through one run. The engine stores the
// non-nil output of every completed node under the node name before any
// dependent starts, so a node may read what its upstream produced.
type State struct {
	mu      sync.RWMutex
	outputs map[string]any
}

// NewState returns an empty State.
func NewState() *State {
	return &State{outputs: make(map[string]any)}
}

// Set stores v under key.
func (s *State) Set(key string, v any) {
	s.mu.Lock()
	s.outputs[key] = v
	s.mu.Unlock()
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.outputs[key]
	return v, ok
}

// Snapshot copies the stored values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.outputs)
}

// Output returns the output of node as a T.
func Output[T any](s *State, node string) (T, error) {
	var zero T
	v, ok := s.Get(node)
	if !ok {
		return zero, fmt.Errorf("dag: no output from %q", node)
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("dag: output of %q is %T, not %T", node, v, zero)
	}
	return out, nil
}
