package step

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/scope"
)

func noop() Script {
	return ScriptFunc(func(context.Context, *Invocation) error { return nil })
}

func def(label string) Definition {
	return Definition{
		Label:   label,
		PathIn:  pathpattern.Single("RAW", "{id}-{task}.csv"),
		PathOut: pathpattern.Single("OUT", "{id}-"+label+".csv"),
		Script:  noop(),
	}
}

func testRegistry(t *testing.T) (*Registry, *scope.Topology) {
	t.Helper()
	top, err := scope.NewTopology([]scope.TaskDef{
		{Name: "RS", Modalities: []string{"EEG"}},
		{Name: "MMN", Modalities: []string{"EEG", "behavior"}},
	}, []string{"EEG", "behavior"})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	for _, l := range []string{"preprocess", "features", "mmn_erp"} {
		r.MustRegister("EEG", def(l))
	}
	r.MustRegister("behavior", def("scores"))
	r.SetOrder("EEG", Order{
		Scripts:     []string{"preprocess", "features"},
		TaskScripts: map[string][]string{"MMN": {"mmn_erp"}},
	})
	r.SetOrder("behavior", Order{Scripts: []string{"scores"}})
	if err := r.Validate(top); err != nil {
		t.Fatal(err)
	}
	return r, top
}

func TestUnitCollection(t *testing.T) {
	r, top := testRegistry(t)

	rs := r.Collection(top, scope.Unit("RS", "EEG"))
	labels, err := rs.Labels()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(labels, []string{"preprocess", "features"}) {
		t.Errorf("RS labels = %v", labels)
	}

	mmn := r.Collection(top, scope.Unit("MMN", "EEG"))
	labels, _ = mmn.Labels()
	if !reflect.DeepEqual(labels, []string{"preprocess", "features", "mmn_erp"}) {
		t.Errorf("MMN labels = %v", labels)
	}
	if n, _ := mmn.Count(); n != 3 {
		t.Errorf("Count = %d", n)
	}

	d, pos, err := mmn.Get("mmn_erp")
	if err != nil || d.Label != "mmn_erp" || pos != 3 {
		t.Errorf("Get = %v, %d, %v", d.Label, pos, err)
	}
	if _, _, err := rs.Get("mmn_erp"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	first, err := rs.First()
	if err != nil || first.Label != "preprocess" {
		t.Errorf("First = %v, %v", first.Label, err)
	}
	found, _ := mmn.Find("e")
	if len(found) != 3 {
		t.Errorf("Find(e) = %d defs", len(found))
	}
}

func TestMultiCollection(t *testing.T) {
	r, top := testRegistry(t)

	all := r.Collection(top, scope.Scope{})
	if _, _, err := all.Get("preprocess"); !errors.Is(err, errors.ErrCodeNoModality) {
		t.Errorf("expected NoModality, got %v", err)
	}
	eeg := r.Collection(top, scope.Scope{Modality: "EEG"})
	if _, err := eeg.Labels(); !errors.Is(err, errors.ErrCodeNotUnit) {
		t.Errorf("expected NotUnit, got %v", err)
	}

	var units []scope.Scope
	for _, u := range all.Units() {
		units = append(units, u.Scope())
	}
	want := []scope.Scope{scope.Unit("RS", "EEG"), scope.Unit("MMN", "EEG"), scope.Unit("MMN", "behavior")}
	if !slices.Equal(units, want) {
		t.Errorf("Units = %v, want %v", units, want)
	}

	each := all.GetEach("mmn_erp")
	if len(each) != 3 {
		t.Fatalf("GetEach size = %d", len(each))
	}
	if each[scope.Unit("RS", "EEG")] != nil || each[scope.Unit("MMN", "behavior")] != nil {
		t.Error("units without the step must map to nil")
	}
	if d := each[scope.Unit("MMN", "EEG")]; d == nil || d.Label != "mmn_erp" {
		t.Errorf("MMN/EEG = %v", d)
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("EEG", Definition{Script: noop()}); err == nil {
		t.Error("expected error for empty label")
	}
	if err := r.Register("EEG", Definition{Label: "x"}); err == nil {
		t.Error("expected error for missing script")
	}
	r.MustRegister("EEG", def("x"))
	if err := r.Register("EEG", def("x")); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected configuration error for duplicate, got %v", err)
	}
	if _, err := r.Definition("EEG", "y"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}

	top, _ := scope.NewTopology([]scope.TaskDef{{Name: "RS", Modalities: []string{"EEG"}}}, []string{"EEG"})
	r.SetOrder("EEG", Order{Scripts: []string{"x", "missing"}})
	if err := r.Validate(top); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected configuration error for unregistered label, got %v", err)
	}
	r.SetOrder("EEG", Order{Scripts: []string{"x"}, TaskScripts: map[string][]string{"XX": {"x"}}})
	if err := r.Validate(top); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected configuration error for unknown task, got %v", err)
	}
	r.SetOrder("EEG", Order{Scripts: []string{"x", "x"}})
	if err := r.Validate(top); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected configuration error for repeated label, got %v", err)
	}
}

func TestGlobModel(t *testing.T) {
	r, top := testRegistry(t)
	root := t.TempDir()
	for _, f := range []string{"A-RS.csv", "B-RS.csv", "C-MMN.csv"} {
		writeFile(t, filepath.Join(root, "RAW", f), "x")
	}
	u := UnitContext{
		DataRoot: root,
		Unit:     scope.Unit("RS", "EEG"),
		Steps:    r.Collection(top, scope.Unit("RS", "EEG")),
	}
	ids := slices.Collect(r.Model("EEG").IterIDs(u))
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"A", "B"}) {
		t.Errorf("ids = %v", ids)
	}

	empty := NewRegistry()
	u.Steps = empty.Collection(top, scope.Unit("RS", "EEG"))
	if ids := slices.Collect(empty.Model("EEG").IterIDs(u)); len(ids) != 0 {
		t.Errorf("unit without steps yielded %v", ids)
	}
}

func TestCSVIndexModel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clinical", "RS.csv"), "age,record_id\n30,REC-1\n41,REC-2\n22,REC-1\n50,bad id\n,\n")

	m := CSVIndexModel{Path: pathpattern.Segments{"clinical", "{task}.csv"}}
	u := UnitContext{DataRoot: root, IDPattern: `REC-\d+`, Unit: scope.Unit("RS", "clinical")}
	ids := slices.Collect(m.IterIDs(u))
	if !slices.Equal(ids, []string{"REC-1", "REC-2"}) {
		t.Errorf("ids = %v", ids)
	}

	u.Unit = scope.Unit("MMN", "clinical")
	if ids := slices.Collect(m.IterIDs(u)); len(ids) != 0 {
		t.Errorf("missing file yielded %v", ids)
	}

	m.IDColumn = "subject"
	u.Unit = scope.Unit("RS", "clinical")
	if ids := slices.Collect(m.IterIDs(u)); len(ids) != 0 {
		t.Errorf("missing column yielded %v", ids)
	}
}

func TestCSVIndexModelAnchoredPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clinical.csv"), "record_id\nREC-1\nxREC-2\n")
	m := CSVIndexModel{Path: pathpattern.Segments{"clinical.csv"}}
	u := UnitContext{DataRoot: root, IDPattern: `^REC-\d+$`, Unit: scope.Unit("RS", "clinical")}
	if ids := slices.Collect(m.IterIDs(u)); !slices.Equal(ids, []string{"REC-1"}) {
		t.Errorf("ids = %v", ids)
	}
}

// failingReader serves data, then fails every later read.
type failingReader struct{ data *strings.Reader }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data.Len() > 0 {
		return r.data.Read(p)
	}
	return 0, os.ErrClosed
}

func TestCSVIDs(t *testing.T) {
	tests := []struct {
		name string
		src  io.Reader
		want []string
	}{
		{"malformed row skipped", strings.NewReader("record_id,note\nREC-1,a\"b\nREC-2,ok\n"), []string{"REC-2"}},
		{"read error ends", &failingReader{data: strings.NewReader("record_id\nREC-1\n")}, []string{"REC-1"}},
		{"empty input", strings.NewReader(""), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slices.Collect(csvIDs(tt.src, "", nil)); !slices.Equal(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandScript(t *testing.T) {
	env := testEnv(t)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "hello")
	d := Definition{
		Label:   "copy",
		PathIn:  pathpattern.Single("RAW", "{id}-{task}.csv"),
		PathOut: pathpattern.Single("OUT", "{id}", "{task}.csv"),
		Script: &CommandScript{
			Binary: "cp",
			Args:   []string{"{input}", "{output}"},
		},
	}
	s := Bind(d, 1, "REC-1", rsEEG, env)
	if err := s.Run(context.Background(), RunOptions{Debug: true}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(s.Paths().Output.Single())
	if err != nil || string(b) != "hello" {
		t.Errorf("output = %q, %v", b, err)
	}

	failing := Definition{
		Label:   "fail",
		PathIn:  d.PathIn,
		PathOut: pathpattern.Single("OUT", "{id}", "never.csv"),
		Script:  &CommandScript{Binary: "sh", Args: []string{"-c", "echo nope >&2; exit 2"}},
	}
	err = Bind(failing, 2, "REC-1", rsEEG, env).Run(context.Background(), RunOptions{Debug: true})
	if !errors.Is(err, errors.ErrCodeScriptFailed) {
		t.Errorf("expected SCRIPT_FAILED, got %v", err)
	}
}

func TestCommandVars(t *testing.T) {
	inv := &Invocation{
		DataRoot: "/d",
		RecordID: "R",
		Task:     "RS",
		Modality: "EEG",
		Label:    "x",
		Options:  map[string]string{"band": "alpha"},
		Paths: IO{
			Input: pathpattern.Resolve("/d", pathpattern.Single("in.csv"), pathpattern.Vars{}),
			Output: pathpattern.Resolve("/d", pathpattern.Named(map[string]pathpattern.Segments{
				"a": {"a.csv"},
				"b": {"b.csv"},
			}), pathpattern.Vars{}),
		},
	}
	vars := pathpattern.Vars{ID: inv.RecordID, Task: inv.Task, Options: commandVars(inv)}
	got := vars.Format("{id} {task} {modality} {label} {band} {input} {output_b} {output}")
	want := "R RS EEG x alpha /d/in.csv /d/b.csv /d/a.csv /d/b.csv"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}
