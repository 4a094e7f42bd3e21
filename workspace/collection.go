package workspace

import (
	"context"
	"iter"
	"slices"

	"github.com/kbukum/recflow/logstore"
	"github.com/kbukum/recflow/plan"
	"github.com/kbukum/recflow/runner"
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/step"
)

// RecordCollection is the set of records found in a scope. Ids are
// discovered from disk on every call.
type RecordCollection struct {
	ws    *Workspace
	scope scope.Scope
}

// Scope returns the scope of the collection.
func (c *RecordCollection) Scope() scope.Scope { return c.scope }

// Sub narrows the collection to task and/or modality.
func (c *RecordCollection) Sub(task, modality string) (*RecordCollection, error) {
	s, err := c.ws.top.Sub(c.scope, task, modality)
	if err != nil {
		return nil, err
	}
	return &RecordCollection{ws: c.ws, scope: s}, nil
}

// Units returns one collection per unit inside the scope.
func (c *RecordCollection) Units() []*RecordCollection {
	units := c.ws.top.Units(c.scope)
	out := make([]*RecordCollection, len(units))
	for i, u := range units {
		out[i] = &RecordCollection{ws: c.ws, scope: u}
	}
	return out
}

// IterIDs yields every record id of the scope once, in the order the
// units first report them.
func (c *RecordCollection) IterIDs() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for _, u := range c.ws.top.Units(c.scope) {
			for id := range c.ws.unitIDs(u) {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if !yield(id) {
					return
				}
			}
		}
	}
}

// IDs returns the record ids of the scope.
func (c *RecordCollection) IDs() []string {
	return slices.Collect(c.IterIDs())
}

// Get returns the record id in the collection scope. The id is checked
// against records.id_pattern only; the record need not exist on disk.
func (c *RecordCollection) Get(id string) (*Record, error) {
	if err := c.ws.validID(id); err != nil {
		return nil, err
	}
	return &Record{ws: c.ws, id: id, scope: c.scope}, nil
}

// First returns the first record found.
func (c *RecordCollection) First() (*Record, bool) {
	for id := range c.IterIDs() {
		return &Record{ws: c.ws, id: id, scope: c.scope}, true
	}
	return nil, false
}

// Head returns at most n records.
func (c *RecordCollection) Head(n int) []*Record {
	var out []*Record
	if n <= 0 {
		return out
	}
	for rec := range c.All() {
		out = append(out, rec)
		if len(out) == n {
			break
		}
	}
	return out
}

// All yields every record of the scope.
func (c *RecordCollection) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for id := range c.IterIDs() {
			if !yield(&Record{ws: c.ws, id: id, scope: c.scope}) {
				return
			}
		}
	}
}

// Has reports whether id is found in the scope.
func (c *RecordCollection) Has(id string) bool {
	for found := range c.IterIDs() {
		if found == id {
			return true
		}
	}
	return false
}

// Count returns the number of records in the scope.
func (c *RecordCollection) Count() int {
	n := 0
	for range c.IterIDs() {
		n++
	}
	return n
}

// Steps returns the step collection of the scope.
func (c *RecordCollection) Steps() *step.Collection {
	return c.ws.registry.Collection(c.ws.top, c.scope)
}

// Run runs every record of the scope as one plan.
func (c *RecordCollection) Run(ctx context.Context, opts step.RunOptions) (*runner.Report, error) {
	return c.ws.manager.Run(ctx, c.records(), opts)
}

// Plan builds the run plan of the scope without running it.
func (c *RecordCollection) Plan() (*plan.Plan, error) {
	return c.ws.manager.Plan(c.records())
}

// SavePipelines writes the plan of the scope as pipeline YAML files into
// dir. See runner.SavePipelines.
func (c *RecordCollection) SavePipelines(dir string) error {
	p, err := c.Plan()
	if err != nil {
		return err
	}
	return runner.SavePipelines(dir, p)
}

func (c *RecordCollection) records() []plan.RecordSteps {
	var records []plan.RecordSteps
	for id := range c.IterIDs() {
		records = append(records, plan.RecordSteps{RecordID: id, Units: c.ws.bind(id, c.scope)})
	}
	return records
}

// Status returns the step status rows of every record.
func (c *RecordCollection) Status() []StatusRow {
	var rows []StatusRow
	for rec := range c.All() {
		rows = append(rows, rec.Status()...)
	}
	return rows
}

// Logs returns the log entries of every record inside the scope, newest
// first.
func (c *RecordCollection) Logs() ([]logstore.Entry, error) {
	var out []logstore.Entry
	for id := range c.IterIDs() {
		entries, err := c.ws.store.Read(id, logstore.Filter{Task: c.scope.Task, Modality: c.scope.Modality})
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	slices.SortStableFunc(out, func(a, b logstore.Entry) int {
		return b.Time.Compare(a.Time)
	})
	return out, nil
}

// CountDetail returns the number of records found in each unit.
func (c *RecordCollection) CountDetail() []CountRow {
	units := c.ws.top.Units(c.scope)
	rows := make([]CountRow, 0, len(units))
	for _, u := range units {
		n := 0
		for range c.ws.unitIDs(u) {
			n++
		}
		rows = append(rows, CountRow{Task: u.Task, Modality: u.Modality, Count: n})
	}
	return rows
}
