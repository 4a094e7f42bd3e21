package workspace

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/kbukum/recflow/logstore"
	"github.com/kbukum/recflow/plan"
	"github.com/kbukum/recflow/runner"
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/status"
	"github.com/kbukum/recflow/step"
)

// Record is one record seen through a scope.
type Record struct {
	ws    *Workspace
	id    string
	scope scope.Scope
}

// ID returns the record id.
func (r *Record) ID() string { return r.id }

// Scope returns the scope of the record view.
func (r *Record) Scope() scope.Scope { return r.scope }

func (r *Record) String() string { return r.id + "@" + r.scope.String() }

// Sub narrows the record view to task and/or modality.
func (r *Record) Sub(task, modality string) (*Record, error) {
	s, err := r.ws.top.Sub(r.scope, task, modality)
	if err != nil {
		return nil, err
	}
	return &Record{ws: r.ws, id: r.id, scope: s}, nil
}

// Steps returns the step collection of the record scope.
func (r *Record) Steps() *step.Collection {
	return r.ws.registry.Collection(r.ws.top, r.scope)
}

// Step binds the step with label to the record. The record view must be a
// unit scope.
func (r *Record) Step(label string) (*step.Step, error) {
	def, pos, err := r.Steps().Get(label)
	if err != nil {
		return nil, err
	}
	return step.Bind(def, pos, r.id, r.scope, r.ws.env()), nil
}

// Run runs every step of the record scope.
func (r *Record) Run(ctx context.Context, opts step.RunOptions) (*runner.Report, error) {
	return r.ws.manager.Run(ctx, []plan.RecordSteps{r.steps()}, opts)
}

func (r *Record) steps() plan.RecordSteps {
	return plan.RecordSteps{RecordID: r.id, Units: r.ws.bind(r.id, r.scope)}
}

// Status returns one row per step of the record scope, in run order.
func (r *Record) Status() []StatusRow {
	var rows []StatusRow
	for _, u := range r.steps().Units {
		for _, st := range u.Steps {
			rows = append(rows, StatusRow{
				RecordID: r.id,
				Task:     u.Unit.Task,
				Modality: u.Unit.Modality,
				Index:    st.Position(),
				Label:    st.Label(),
				Status:   st.Status(),
			})
		}
	}
	return rows
}

// StatusTree groups Status by task and modality.
func (r *Record) StatusTree() StatusTree {
	tree := make(StatusTree)
	for _, row := range r.Status() {
		mods, ok := tree[row.Task]
		if !ok {
			mods = make(map[string][]StepStatus)
			tree[row.Task] = mods
		}
		mods[row.Modality] = append(mods[row.Modality], StepStatus{
			Index:  row.Index,
			Label:  row.Label,
			Status: row.Status,
		})
	}
	return tree
}

// StatusJSON encodes StatusTree for web clients.
func (r *Record) StatusJSON() ([]byte, error) {
	return json.Marshal(r.StatusTree())
}

// Logs returns the record log entries inside the record scope, newest
// first.
func (r *Record) Logs() ([]logstore.Entry, error) {
	return r.ws.store.Read(r.id, logstore.Filter{Task: r.scope.Task, Modality: r.scope.Modality})
}

// CountDetail reports, per unit, whether the modality holds data for the
// record: Count is 1 when the modality model lists its id.
func (r *Record) CountDetail() []CountRow {
	var rows []CountRow
	for _, u := range r.steps().Units {
		n := 0
		if len(u.Steps) > 0 && slices.Contains(slices.Collect(r.ws.unitIDs(u.Unit)), r.id) {
			n = 1
		}
		rows = append(rows, CountRow{RecordID: r.id, Task: u.Unit.Task, Modality: u.Unit.Modality, Count: n})
	}
	return rows
}

// StatusRow is the status of one step of one record.
type StatusRow struct {
	RecordID string      `json:"record_id"`
	Task     string      `json:"task"`
	Modality string      `json:"modality"`
	Index    int         `json:"step_index"`
	Label    string      `json:"step_label"`
	Status   status.Code `json:"step_status"`
}

// StepStatus is a StatusRow inside a StatusTree.
type StepStatus struct {
	Index  int         `json:"step_index"`
	Label  string      `json:"step_label"`
	Status status.Code `json:"step_status"`
}

// StatusTree maps task to modality to step statuses in run order.
type StatusTree map[string]map[string][]StepStatus

// CountRow counts records in one unit.
type CountRow struct {
	RecordID string `json:"record_id,omitempty"`
	Task     string `json:"task"`
	Modality string `json:"modality"`
	Count    int    `json:"count"`
}
