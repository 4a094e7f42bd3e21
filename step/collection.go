package step

import (
	"strings"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/scope"
)

// Collection is the ordered set of step definitions for a scope.
//
// In unit mode (task and modality bound) it exposes the definitions directly.
// Otherwise it is a view over one unit collection per unit of the scope.
type Collection struct {
	scope scope.Scope
	defs  []Definition
	units []*Collection
}

func newUnitCollection(s scope.Scope, defs []Definition) *Collection {
	return &Collection{scope: s, defs: defs}
}

func newMultiCollection(s scope.Scope, units []*Collection) *Collection {
	return &Collection{scope: s, units: units}
}

// Scope returns the scope of the collection.
func (c *Collection) Scope() scope.Scope { return c.scope }

// IsUnit reports whether the collection holds definitions directly.
func (c *Collection) IsUnit() bool { return c.scope.IsUnit() }

func (c *Collection) requireUnit(op string) error {
	return c.scope.RequireUnit(op)
}

// Labels returns the step labels in run order.
func (c *Collection) Labels() ([]string, error) {
	if err := c.requireUnit("step labels"); err != nil {
		return nil, err
	}
	out := make([]string, len(c.defs))
	for i, d := range c.defs {
		out[i] = d.Label
	}
	return out, nil
}

// Count returns the number of steps.
func (c *Collection) Count() (int, error) {
	if err := c.requireUnit("step count"); err != nil {
		return 0, err
	}
	return len(c.defs), nil
}

// All returns the definitions in run order.
func (c *Collection) All() ([]Definition, error) {
	if err := c.requireUnit("steps"); err != nil {
		return nil, err
	}
	return append([]Definition(nil), c.defs...), nil
}

// Get returns the definition with label and its 1-based position.
func (c *Collection) Get(label string) (Definition, int, error) {
	if err := c.requireUnit("step lookup"); err != nil {
		return Definition{}, 0, err
	}
	for i, d := range c.defs {
		if d.Label == label {
			return d, i + 1, nil
		}
	}
	return Definition{}, 0, errors.NotFound("step", label).WithDetail("scope", c.scope.String())
}

// First returns the first definition.
func (c *Collection) First() (Definition, error) {
	if err := c.requireUnit("first step"); err != nil {
		return Definition{}, err
	}
	if len(c.defs) == 0 {
		return Definition{}, errors.NotFound("step", "first").WithDetail("scope", c.scope.String())
	}
	return c.defs[0], nil
}

// Find returns the definitions whose label contains substr.
func (c *Collection) Find(substr string) ([]Definition, error) {
	if err := c.requireUnit("step search"); err != nil {
		return nil, err
	}
	var out []Definition
	for _, d := range c.defs {
		if strings.Contains(d.Label, substr) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Units returns the unit collections inside the scope, in topology order.
// A unit collection returns itself.
func (c *Collection) Units() []*Collection {
	if c.IsUnit() {
		return []*Collection{c}
	}
	return append([]*Collection(nil), c.units...)
}

// GetEach looks label up in every unit. Units without the step map to nil.
func (c *Collection) GetEach(label string) map[scope.Scope]*Definition {
	out := make(map[scope.Scope]*Definition)
	for _, u := range c.Units() {
		d, _, err := u.Get(label)
		if err != nil {
			out[u.scope] = nil
			continue
		}
		out[u.scope] = &d
	}
	return out
}
