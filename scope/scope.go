// Package scope models (task, modality) selectors and the adjacency between
// tasks and modalities declared by a workspace.
package scope

import (
	"fmt"
	"slices"

	"github.com/kbukum/recflow/errors"
)

// Scope selects a subset of units. An empty field means "all".
type Scope struct {
	Task     string `json:"task,omitempty"`
	Modality string `json:"modality,omitempty"`
}

// Unit returns a fully bound scope.
func Unit(task, modality string) Scope {
	return Scope{Task: task, Modality: modality}
}

// IsUnit reports whether both task and modality are bound.
func (s Scope) IsUnit() bool { return s.Task != "" && s.Modality != "" }

// IsRoot reports whether neither axis is bound.
func (s Scope) IsRoot() bool { return s.Task == "" && s.Modality == "" }

// Contains reports whether u falls inside s.
func (s Scope) Contains(u Scope) bool {
	return (s.Task == "" || s.Task == u.Task) && (s.Modality == "" || s.Modality == u.Modality)
}

func (s Scope) String() string {
	t, m := s.Task, s.Modality
	if t == "" {
		t = "*"
	}
	if m == "" {
		m = "*"
	}
	return t + "/" + m
}

// RequireUnit returns NoModality or NotUnit when s is not a unit scope.
func (s Scope) RequireUnit(operation string) error {
	if s.Modality == "" {
		return errors.NoModality(operation)
	}
	if s.Task == "" {
		return errors.NotUnit(operation)
	}
	return nil
}

// TaskDef declares a task and the modalities recorded for it.
type TaskDef struct {
	Name       string
	Modalities []string
}

// Topology is the ordered task and modality table of a workspace.
type Topology struct {
	tasks      []string
	modalities []string
	taskMods   map[string][]string
}

// NewTopology validates tasks against the declared modalities.
func NewTopology(tasks []TaskDef, modalities []string) (*Topology, error) {
	t := &Topology{taskMods: make(map[string][]string, len(tasks))}
	for _, m := range modalities {
		if m == "" {
			return nil, errors.Configuration("modality name must not be empty")
		}
		if slices.Contains(t.modalities, m) {
			return nil, errors.Configuration("modality %q declared twice", m)
		}
		t.modalities = append(t.modalities, m)
	}
	for _, td := range tasks {
		if td.Name == "" {
			return nil, errors.Configuration("task name must not be empty")
		}
		if _, dup := t.taskMods[td.Name]; dup {
			return nil, errors.Configuration("task %q declared twice", td.Name)
		}
		mods := make([]string, 0, len(td.Modalities))
		for _, m := range td.Modalities {
			if !slices.Contains(t.modalities, m) {
				return nil, errors.Configuration("task %q references unknown modality %q", td.Name, m)
			}
			if slices.Contains(mods, m) {
				return nil, errors.Configuration("task %q lists modality %q twice", td.Name, m)
			}
			mods = append(mods, m)
		}
		t.tasks = append(t.tasks, td.Name)
		t.taskMods[td.Name] = mods
	}
	return t, nil
}

// HasTask reports whether task is declared.
func (t *Topology) HasTask(task string) bool {
	_, ok := t.taskMods[task]
	return ok
}

// HasModality reports whether modality is declared.
func (t *Topology) HasModality(modality string) bool {
	return slices.Contains(t.modalities, modality)
}

// Valid reports whether s only names declared tasks and modalities, and a
// unit scope pairs a task with one of its modalities.
func (t *Topology) Valid(s Scope) bool {
	if s.Task != "" && !t.HasTask(s.Task) {
		return false
	}
	if s.Modality != "" && !t.HasModality(s.Modality) {
		return false
	}
	if s.IsUnit() {
		return slices.Contains(t.taskMods[s.Task], s.Modality)
	}
	return true
}

// Sub narrows s by binding task and/or modality. Binding an axis that s
// already binds is invalid, as is a modality not recorded for the task.
func (t *Topology) Sub(s Scope, task, modality string) (Scope, error) {
	if task != "" {
		if s.Task != "" {
			return s, errors.InvalidInput("task", fmt.Sprintf("scope %s already has a task", s))
		}
		if !t.HasTask(task) {
			return s, errors.NotFound("task", task)
		}
		s.Task = task
	}
	if modality != "" {
		if s.Modality != "" {
			return s, errors.InvalidInput("modality", fmt.Sprintf("scope %s already has a modality", s))
		}
		if !t.HasModality(modality) {
			return s, errors.NotFound("modality", modality)
		}
		s.Modality = modality
	}
	if s.IsUnit() && !slices.Contains(t.taskMods[s.Task], s.Modality) {
		return s, errors.InvalidInput("modality", fmt.Sprintf("%q is not recorded for task %q", s.Modality, s.Task))
	}
	return s, nil
}

// Tasks returns the tasks inside s, in declared order.
func (t *Topology) Tasks(s Scope) []string {
	var out []string
	for _, task := range t.tasks {
		if s.Task != "" && task != s.Task {
			continue
		}
		if s.Modality != "" && !slices.Contains(t.taskMods[task], s.Modality) {
			continue
		}
		out = append(out, task)
	}
	return out
}

// Modalities returns the modalities inside s, in declared order.
func (t *Topology) Modalities(s Scope) []string {
	var out []string
	for _, m := range t.modalities {
		if s.Modality != "" && m != s.Modality {
			continue
		}
		if s.Task != "" && !slices.Contains(t.taskMods[s.Task], m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Units returns every unit scope inside s: tasks in declared order, then
// each task's modalities in the order the task lists them.
func (t *Topology) Units(s Scope) []Scope {
	var out []Scope
	for _, task := range t.Tasks(s) {
		for _, m := range t.taskMods[task] {
			if s.Modality != "" && m != s.Modality {
				continue
			}
			out = append(out, Unit(task, m))
		}
	}
	return out
}

// TaskModalities returns the modalities recorded for task.
func (t *Topology) TaskModalities(task string) []string {
	return slices.Clone(t.taskMods[task])
}
