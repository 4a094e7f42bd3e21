package step

import (
	"slices"
	"sort"
	"sync"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/scope"
)

// Order lists the step labels of a modality: shared scripts first, then the
// task-specific scripts of the active task.
type Order struct {
	Scripts     []string
	TaskScripts map[string][]string
}

// Labels returns the run order for task.
func (o Order) Labels(task string) []string {
	out := append([]string(nil), o.Scripts...)
	return append(out, o.TaskScripts[task]...)
}

// Registry maps modalities to their step definitions, step order and record
// model. It is filled while a workspace is built and read afterwards.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]map[string]Definition
	orders map[string]Order
	models map[string]Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:   make(map[string]map[string]Definition),
		orders: make(map[string]Order),
		models: make(map[string]Model),
	}
}

// Register adds a definition for modality. Labels are unique per modality.
func (r *Registry) Register(modality string, def Definition) error {
	if def.Label == "" {
		return errors.InvalidInput("label", "must not be empty")
	}
	if def.Script == nil {
		return errors.InvalidInput("script", "step "+def.Label+" has no script")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.defs[modality]
	if !ok {
		m = make(map[string]Definition)
		r.defs[modality] = m
	}
	if _, dup := m[def.Label]; dup {
		return errors.Configuration("step %q registered twice for modality %q", def.Label, modality)
	}
	m[def.Label] = def
	return nil
}

// MustRegister is Register that panics on error, for static script tables.
func (r *Registry) MustRegister(modality string, def Definition) {
	if err := r.Register(modality, def); err != nil {
		panic(err)
	}
}

// SetOrder sets the step order of modality.
func (r *Registry) SetOrder(modality string, o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[modality] = o
}

// SetModel sets the record model of modality.
func (r *Registry) SetModel(modality string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[modality] = m
}

// Model returns the record model of modality, GlobModel by default.
func (r *Registry) Model(modality string) Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[modality]; ok {
		return m
	}
	return GlobModel{}
}

// Definition returns the definition of label for modality.
func (r *Registry) Definition(modality, label string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[modality][label]
	if !ok {
		return Definition{}, errors.NotFound("step", label).WithDetail("modality", modality)
	}
	return d, nil
}

// Labels returns the registered labels of modality, sorted.
func (r *Registry) Labels(modality string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs[modality]))
	for l := range r.defs[modality] {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every ordered label of every unit has a definition.
func (r *Registry) Validate(top *scope.Topology) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range top.Units(scope.Scope{}) {
		labels := r.orders[u.Modality].Labels(u.Task)
		for i, l := range labels {
			if _, ok := r.defs[u.Modality][l]; !ok {
				return errors.Configuration("modality %q lists step %q with no registered script", u.Modality, l)
			}
			if slices.Contains(labels[:i], l) {
				return errors.Configuration("step %q listed twice for unit %s", l, u)
			}
		}
	}
	for modality, o := range r.orders {
		for task := range o.TaskScripts {
			if !top.HasTask(task) {
				return errors.Configuration("modality %q has task_scripts for unknown task %q", modality, task)
			}
		}
	}
	return nil
}

// Collection returns the step collection of s. Unknown labels in the order
// are skipped; Validate reports them.
func (r *Registry) Collection(top *scope.Topology, s scope.Scope) *Collection {
	if s.IsUnit() {
		return r.unitCollection(s)
	}
	units := top.Units(s)
	cols := make([]*Collection, 0, len(units))
	for _, u := range units {
		cols = append(cols, r.unitCollection(u))
	}
	return newMultiCollection(s, cols)
}

func (r *Registry) unitCollection(u scope.Scope) *Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []Definition
	for _, l := range r.orders[u.Modality].Labels(u.Task) {
		if d, ok := r.defs[u.Modality][l]; ok {
			defs = append(defs, d)
		}
	}
	return newUnitCollection(u, defs)
}
