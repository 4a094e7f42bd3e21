package step

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/logstore"
	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/status"
)

var rsEEG = scope.Unit("RS", "EEG")

func testEnv(t *testing.T) Env {
	t.Helper()
	root := t.TempDir()
	store, err := logstore.New(filepath.Join(root, logstore.DirName))
	if err != nil {
		t.Fatal(err)
	}
	return Env{DataRoot: root, Store: store}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// copyScript appends a run counter to the input content and writes it out.
// With missing input it writes a fallback.
func copyScript(runs *int) Script {
	return ScriptFunc(func(_ context.Context, inv *Invocation) error {
		*runs++
		content := "fallback"
		if inv.InputsExist() {
			b, err := os.ReadFile(inv.Paths.Input.Single())
			if err != nil {
				return err
			}
			content = strings.Repeat(string(b), *runs)
		}
		return os.WriteFile(inv.Paths.Output.Single(), []byte(content), 0o644)
	})
}

func preprocessDef(s Script) Definition {
	return Definition{
		Label:   "preprocess",
		PathIn:  pathpattern.Single("RAW", "{id}-{task}.csv"),
		PathOut: pathpattern.Single("PROCESSED", "{id}", "{task}-clean.csv"),
		Script:  s,
	}
}

func analyzeDef(s Script) Definition {
	return Definition{
		Label:   "analyze",
		PathIn:  pathpattern.Single("PROCESSED", "{id}", "{task}-clean.csv"),
		PathOut: pathpattern.Single("RESULTS", "{id}", "{task}-stats.csv"),
		Script:  s,
	}
}

func statuses(t *testing.T, env Env, id string) []status.Code {
	t.Helper()
	entries, err := env.Store.Read(id, logstore.Filter{StatusOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	out := make([]status.Code, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, *entries[i].StepStatus)
	}
	return out
}

func TestStatusWithoutOutput(t *testing.T) {
	env := testEnv(t)
	var runs int
	s := Bind(preprocessDef(copyScript(&runs)), 1, "REC-1", rsEEG, env)

	if got := s.Status(); got != status.Init {
		t.Errorf("no input: status = %s, want INIT", got)
	}
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
	if got := s.Status(); got != status.DataReady {
		t.Errorf("input present: status = %s, want DATA_READY", got)
	}
}

func TestStatusDoneRegardlessOfLogs(t *testing.T) {
	env := testEnv(t)
	s := Bind(preprocessDef(ScriptFunc(func(context.Context, *Invocation) error {
		return stderrors.New("boom")
	})), 1, "REC-1", rsEEG, env)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")

	if err := s.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := s.Status(); got != status.Error {
		t.Fatalf("after failure: status = %s, want ERROR", got)
	}
	writeFile(t, s.Paths().Output.Single(), "done elsewhere")
	if got := s.Status(); got != status.Done {
		t.Errorf("outputs present: status = %s, want DONE", got)
	}
}

func TestStatusIgnoresEmptyOutput(t *testing.T) {
	env := testEnv(t)
	s := Bind(preprocessDef(nil), 1, "REC-1", rsEEG, env)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
	writeFile(t, s.Paths().Output.Single(), "")
	if got := s.Status(); got != status.DataReady {
		t.Errorf("empty output: status = %s, want DATA_READY", got)
	}
}

func TestStatusProcessingFromLog(t *testing.T) {
	env := testEnv(t)
	s := Bind(preprocessDef(nil), 1, "REC-1", rsEEG, env)
	w, err := env.Store.Open("REC-1", logstore.Fields{Task: "RS", Modality: "EEG", StepLabel: "preprocess"})
	if err != nil {
		t.Fatal(err)
	}
	w.Status(status.Processing, "crashed mid-run")
	w.Close()

	if got := s.Status(); got != status.Processing {
		t.Errorf("status = %s, want PROCESSING", got)
	}

	other := Bind(preprocessDef(nil), 1, "REC-1", scope.Unit("MMN", "EEG"), env)
	if got := other.Status(); got != status.Init {
		t.Errorf("log entry of another task leaked: status = %s", got)
	}
}

func TestRunIdempotent(t *testing.T) {
	env := testEnv(t)
	var runs int
	s := Bind(preprocessDef(copyScript(&runs)), 1, "REC-1", rsEEG, env)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "ab")

	ctx := context.Background()
	if err := s.Run(ctx, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	first := readFile(t, s.Paths().Output.Single())
	if err := s.Run(ctx, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, s.Paths().Output.Single()); got != first {
		t.Errorf("second run changed output: %q -> %q", first, got)
	}
	if runs != 1 {
		t.Errorf("script ran %d times, want 1", runs)
	}

	want := []status.Code{status.Init, status.Processing, status.Done, status.Init, status.Done}
	if got := statuses(t, env, "REC-1"); !equalCodes(got, want) {
		t.Errorf("log statuses = %v, want %v", got, want)
	}
}

func TestRunForce(t *testing.T) {
	env := testEnv(t)
	var runs int
	s := Bind(preprocessDef(copyScript(&runs)), 1, "REC-1", rsEEG, env)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "ab")

	ctx := context.Background()
	if err := s.Run(ctx, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := s.Run(ctx, RunOptions{Force: true}); err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Fatalf("script ran %d times, want 2", runs)
	}
	if got := readFile(t, s.Paths().Output.Single()); got != "abab" {
		t.Errorf("forced run did not overwrite output: %q", got)
	}
}

func TestRunMissingInput(t *testing.T) {
	env := testEnv(t)
	var runs int
	s := Bind(preprocessDef(copyScript(&runs)), 1, "REC-1", rsEEG, env)

	if err := s.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if runs != 0 {
		t.Error("script must not run without input")
	}
	if pathpattern.Exists(s.Paths().Output.Single()) {
		t.Error("no output expected")
	}
	want := []status.Code{status.Init, status.DataNotAvailable}
	if got := statuses(t, env, "REC-1"); !equalCodes(got, want) {
		t.Errorf("log statuses = %v, want %v", got, want)
	}
}

func TestRunIgnoreMissing(t *testing.T) {
	env := testEnv(t)
	var runs int
	s := Bind(preprocessDef(copyScript(&runs)), 1, "REC-1", rsEEG, env)

	if err := s.Run(context.Background(), RunOptions{IgnoreMissing: true}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, s.Paths().Output.Single()); got != "fallback" {
		t.Errorf("output = %q, want fallback", got)
	}
	if got := s.Status(); got != status.Done {
		t.Errorf("status = %s, want DONE", got)
	}
}

func TestRunScriptError(t *testing.T) {
	boom := stderrors.New("boom")
	def := preprocessDef(ScriptFunc(func(context.Context, *Invocation) error { return boom }))

	t.Run("swallowed", func(t *testing.T) {
		env := testEnv(t)
		writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
		s := Bind(def, 1, "REC-1", rsEEG, env)
		if err := s.Run(context.Background(), RunOptions{}); err != nil {
			t.Fatalf("expected nil error without debug, got %v", err)
		}
		entries, err := env.Store.Read("REC-1", logstore.Filter{StatusOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		var errs int
		for _, e := range entries {
			if *e.StepStatus == status.Error {
				errs++
				if !strings.Contains(e.Message, "boom") {
					t.Errorf("ERROR message %q lacks payload", e.Message)
				}
			}
		}
		if errs != 1 {
			t.Errorf("expected one ERROR entry, got %d", errs)
		}
	})

	t.Run("debug", func(t *testing.T) {
		env := testEnv(t)
		writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
		s := Bind(def, 1, "REC-1", rsEEG, env)
		err := s.Run(context.Background(), RunOptions{Debug: true})
		if !stderrors.Is(err, boom) {
			t.Fatalf("expected boom to propagate, got %v", err)
		}
		if !errors.Is(err, errors.ErrCodeScriptFailed) {
			t.Errorf("expected SCRIPT_FAILED code, got %v", err)
		}
		if got := s.Status(); got != status.Error {
			t.Errorf("status = %s, want ERROR", got)
		}
	})
}

func TestStatusAfterHugeScriptOutput(t *testing.T) {
	env := testEnv(t)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
	def := preprocessDef(ScriptFunc(func(_ context.Context, inv *Invocation) error {
		inv.Log.Info(strings.Repeat("a", 2<<20))
		return stderrors.New("boom")
	}))
	s := Bind(def, 1, "REC-1", rsEEG, env)
	if err := s.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := s.Status(); got != status.Error {
		t.Errorf("status = %s, want ERROR", got)
	}
	if _, err := s.Logs(); err != nil {
		t.Errorf("Logs: %v", err)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	env := testEnv(t)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
	s := Bind(preprocessDef(ScriptFunc(func(context.Context, *Invocation) error {
		panic("kaput")
	})), 1, "REC-1", rsEEG, env)

	err := s.Run(context.Background(), RunOptions{Debug: true})
	if err == nil || !strings.Contains(err.Error(), "kaput") {
		t.Fatalf("expected recovered panic, got %v", err)
	}
	if got := s.Status(); got != status.Error {
		t.Errorf("status = %s, want ERROR", got)
	}
}

func TestLogIsolation(t *testing.T) {
	env := testEnv(t)
	var runs int
	for _, id := range []string{"A", "B"} {
		writeFile(t, filepath.Join(env.DataRoot, "RAW", id+"-RS.csv"), id)
		if err := Bind(preprocessDef(copyScript(&runs)), 1, id, rsEEG, env).Run(context.Background(), RunOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	logs, err := Bind(preprocessDef(nil), 1, "A", rsEEG, env).Logs()
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) == 0 {
		t.Fatal("expected entries for A")
	}
	for _, e := range logs {
		if e.RecordID != "A" {
			t.Errorf("foreign entry in A's logs: %+v", e)
		}
	}
}

func TestChainedStepStaysInit(t *testing.T) {
	env := testEnv(t)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "REC-1-RS.csv"), "x")
	pre := Bind(preprocessDef(nil), 1, "REC-1", rsEEG, env)
	an := Bind(analyzeDef(nil), 2, "REC-1", rsEEG, env)

	if got := pre.Status(); got != status.DataReady {
		t.Errorf("preprocess = %s, want DATA_READY", got)
	}
	if got := an.Status(); got != status.Init {
		t.Errorf("analyze = %s, want INIT", got)
	}
}

func TestRunNamedOutputsCreatesDirs(t *testing.T) {
	env := testEnv(t)
	writeFile(t, filepath.Join(env.DataRoot, "RAW", "X-RS.csv"), "x")
	def := Definition{
		Label:  "scores",
		PathIn: pathpattern.Single("RAW", "{id}-{task}.csv"),
		PathOut: pathpattern.Named(map[string]pathpattern.Segments{
			"raw":  {"OUT", "{id}", "raw", "scores.csv"},
			"norm": {"OUT", "{id}", "norm", "scores.csv"},
		}),
		Script: ScriptFunc(func(_ context.Context, inv *Invocation) error {
			for _, p := range inv.Paths.Output.All() {
				if err := os.WriteFile(p, []byte("1"), 0o644); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	s := Bind(def, 1, "X", rsEEG, env)
	if err := s.Run(context.Background(), RunOptions{Debug: true}); err != nil {
		t.Fatal(err)
	}
	if got := s.Status(); got != status.Done {
		t.Errorf("status = %s, want DONE", got)
	}
}

func TestRunOptionsSelects(t *testing.T) {
	if !(RunOptions{}).Selects("a") {
		t.Error("empty filter selects everything")
	}
	if (RunOptions{StepLabel: "b"}).Selects("a") {
		t.Error("filter must exclude other labels")
	}
}

func equalCodes(a, b []status.Code) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
