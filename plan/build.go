package plan

import (
	"path"
	"slices"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/step"
)

// UnitSteps are the ordered steps of one record in one unit.
type UnitSteps struct {
	Unit  scope.Scope
	Steps []*step.Step
}

// RecordSteps groups the units of one record.
type RecordSteps struct {
	RecordID string
	Units    []UnitSteps
}

// Build assembles a plan. A step of one record and modality reached from
// several tasks with the same output path becomes one node depending on the
// inputs of every task. Any other two steps resolving to the same output
// path are a configuration error.
func Build(records []RecordSteps) (*Plan, error) {
	p := newPlan()
	for _, rec := range records {
		if err := p.addRecord(rec); err != nil {
			return nil, err
		}
	}
	if p.merged {
		if err := p.reorder(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Plan) addRecord(rec RecordSteps) error {
	var (
		tasks     []string
		terminals = make(map[string][]Key)
	)
	for _, us := range rec.Units {
		outs, err := p.addUnit(rec.RecordID, us)
		if err != nil {
			return err
		}
		if len(outs) == 0 {
			continue
		}
		if _, seen := terminals[us.Unit.Task]; !seen {
			tasks = append(tasks, us.Unit.Task)
		}
		terminals[us.Unit.Task] = append(terminals[us.Unit.Task], outs...)
	}
	if len(tasks) == 0 {
		return nil
	}

	var joins []Key
	for _, task := range tasks {
		k := Key{Stage: StageTask, Name: rec.RecordID + "-" + task}
		p.add(&Node{
			Key:      k,
			Kind:     KindJoin,
			RecordID: rec.RecordID,
			Unit:     scope.Scope{Task: task},
			Deps:     terminals[task],
		})
		joins = append(joins, k)
	}
	p.add(&Node{
		Key:      Key{Stage: StageRecord, Name: rec.RecordID},
		Kind:     KindJoin,
		RecordID: rec.RecordID,
		Deps:     joins,
	})
	return nil
}

// addUnit chains the steps of one unit and returns its terminal nodes.
func (p *Plan) addUnit(recordID string, us UnitSteps) ([]Key, error) {
	var prev []Key
	for i, st := range us.Steps {
		rel := st.RelPaths()

		var deps []Key
		if i == 0 {
			for _, in := range rel.Input.All() {
				deps = append(deps, p.source(recordID, in))
			}
		} else {
			deps = matchInputs(prev, rel.Input.All())
		}

		outs, err := p.addStep(recordID, us.Unit, st, rel, deps)
		if err != nil {
			return nil, err
		}
		prev = outs
	}
	return prev, nil
}

// matchInputs returns the keys of prev whose path is one of inputs, or all of
// prev when none match.
func matchInputs(prev []Key, inputs []string) []Key {
	want := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		want[in] = true
	}
	var deps []Key
	for _, k := range prev {
		if want[k.Name] {
			deps = append(deps, k)
		}
	}
	if len(deps) == 0 {
		return append([]Key(nil), prev...)
	}
	return deps
}

func (p *Plan) source(recordID, rel string) Key {
	k := Key{Stage: StageRaw, Name: rel}
	if _, ok := p.index[k]; !ok {
		p.add(&Node{Key: k, Kind: KindSource, RecordID: recordID})
	}
	return k
}

func (p *Plan) addStep(recordID string, unit scope.Scope, st *step.Step, rel step.IO, deps []Key) ([]Key, error) {
	label := st.Label()
	name := rel.Output.String()
	if name == "" {
		name = path.Join(unit.Task, unit.Modality, recordID)
	}

	k := Key{Stage: label, Name: name}
	if n, exists := p.index[k]; exists && sameStep(n, recordID, unit) {
		p.merge(n, deps)
		return p.outputs(k, rel), nil
	}
	if err := p.unique(k); err != nil {
		return nil, err
	}
	p.add(&Node{Key: k, Kind: KindStep, RecordID: recordID, Unit: unit, Deps: deps, Step: st})

	if !rel.Output.IsNamed() || len(rel.Output.Labels()) < 2 {
		return []Key{k}, nil
	}

	var outs []Key
	for _, out := range rel.Output.All() {
		sk := Key{Stage: label, Name: out}
		if err := p.unique(sk); err != nil {
			return nil, err
		}
		p.add(&Node{Key: sk, Kind: KindSplit, RecordID: recordID, Unit: unit, Deps: []Key{k}})
		outs = append(outs, sk)
	}
	return outs, nil
}

// sameStep reports whether n runs the same step definition for recordID as
// a step of unit would.
func sameStep(n *Node, recordID string, unit scope.Scope) bool {
	return n.Kind == KindStep && n.RecordID == recordID && n.Unit.Modality == unit.Modality
}

func (p *Plan) merge(n *Node, deps []Key) {
	for _, d := range deps {
		if !slices.Contains(n.Deps, d) {
			n.Deps = append(n.Deps, d)
		}
	}
	p.merged = true
}

// outputs returns the terminal keys of the step node k.
func (p *Plan) outputs(k Key, rel step.IO) []Key {
	if !rel.Output.IsNamed() || len(rel.Output.Labels()) < 2 {
		return []Key{k}
	}
	outs := make([]Key, 0, len(rel.Output.Labels()))
	for _, out := range rel.Output.All() {
		outs = append(outs, Key{Stage: k.Stage, Name: out})
	}
	return outs
}

// reorder moves every node after its dependencies, keeping insertion order
// where it is already valid.
func (p *Plan) reorder() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[Key]int, len(p.nodes))
	ordered := make([]*Node, 0, len(p.nodes))
	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch state[n.Key] {
		case done:
			return nil
		case visiting:
			return errors.Configuration("plan: dependency cycle at node %s", n.Key)
		}
		state[n.Key] = visiting
		for _, d := range n.Deps {
			if err := visit(p.index[d]); err != nil {
				return err
			}
		}
		state[n.Key] = done
		ordered = append(ordered, n)
		return nil
	}
	for _, n := range p.nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	p.nodes = ordered
	return nil
}

func (p *Plan) unique(k Key) error {
	if _, exists := p.index[k]; exists {
		return errors.Configuration("plan: two steps produce node %s", k)
	}
	return nil
}
