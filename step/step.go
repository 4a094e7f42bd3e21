package step

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/logstore"
	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/status"
)

// Status messages written to the record log.
const (
	MsgInit         = "Init run"
	MsgNoData       = "Input data not available"
	MsgAlreadyDone  = "Run already processed"
	MsgProcessing   = "Processing run"
	MsgFinished     = "Run finished"
	MsgOutputDirErr = "Cannot create output directory"
)

// Env is shared by every step of a workspace.
type Env struct {
	DataRoot string
	Store    *logstore.Store
	Logger   *logger.Logger
	Options  map[string]string
}

// RunOptions control one run request.
type RunOptions struct {
	// StepLabel restricts a run to one step. Other steps are skipped, not marked done.
	StepLabel string
	// Force re-runs steps whose outputs already exist.
	Force bool
	// IgnoreMissing runs scripts even when inputs are missing.
	IgnoreMissing bool
	// Debug returns script errors instead of only logging them.
	Debug bool
}

// Selects reports whether a step with label takes part in the run.
func (o RunOptions) Selects(label string) bool {
	return o.StepLabel == "" || o.StepLabel == label
}

// Step is a Definition bound to one record and one unit scope.
type Step struct {
	def      Definition
	position int
	recordID string
	unit     scope.Scope
	env      Env
	io       IO
}

// Bind binds def to recordID in unit. position is 1-based.
func Bind(def Definition, position int, recordID string, unit scope.Scope, env Env) *Step {
	vars := pathpattern.Vars{ID: recordID, Task: unit.Task, Options: env.Options}
	return &Step{
		def:      def,
		position: position,
		recordID: recordID,
		unit:     unit,
		env:      env,
		io: IO{
			Input:  pathpattern.Resolve(env.DataRoot, def.PathIn, vars),
			Output: pathpattern.Resolve(env.DataRoot, def.PathOut, vars),
		},
	}
}

// Label returns the step label.
func (s *Step) Label() string { return s.def.Label }

// Position returns the 1-based position of the step in its unit.
func (s *Step) Position() int { return s.position }

// RecordID returns the record the step is bound to.
func (s *Step) RecordID() string { return s.recordID }

// Scope returns the unit scope of the step.
func (s *Step) Scope() scope.Scope { return s.unit }

// Definition returns the definition the step was bound from.
func (s *Step) Definition() Definition { return s.def }

// Paths returns the resolved input and output paths.
func (s *Step) Paths() IO { return s.io }

// RelPaths returns the input and output paths relative to the data root.
func (s *Step) RelPaths() IO {
	vars := pathpattern.Vars{ID: s.recordID, Task: s.unit.Task, Options: s.env.Options}
	return IO{
		Input:  pathpattern.Resolve("", s.def.PathIn, vars),
		Output: pathpattern.Resolve("", s.def.PathOut, vars),
	}
}

func (s *Step) String() string {
	return fmt.Sprintf("%s/%s/%s#%d(%s)", s.recordID, s.unit.Task, s.unit.Modality, s.position, s.def.Label)
}

// Status resolves the lifecycle code of the step. It never fails.
func (s *Step) Status() status.Code {
	if s.io.Output.AllExist() {
		return status.Done
	}
	if s.env.Store != nil {
		code, ok := s.env.Store.LatestStatus(s.recordID, logstore.Filter{
			Task:      s.unit.Task,
			Modality:  s.unit.Modality,
			StepLabel: s.def.Label,
		})
		if ok && (code == status.Processing || code == status.Error) {
			return code
		}
	}
	if s.io.Input.AllExist() {
		return status.DataReady
	}
	return status.Init
}

// Logs returns this step's log entries, newest first.
func (s *Step) Logs() ([]logstore.Entry, error) {
	if s.env.Store == nil {
		return nil, nil
	}
	return s.env.Store.Read(s.recordID, logstore.Filter{
		Task:      s.unit.Task,
		Modality:  s.unit.Modality,
		StepLabel: s.def.Label,
	})
}

// Run executes the step once. Missing inputs and existing outputs end the run
// early with a status entry. Script failures are logged as ERROR and only
// returned when opts.Debug is set. A returned error without Debug means the
// record log itself could not be opened.
func (s *Step) Run(ctx context.Context, opts RunOptions) (err error) {
	runID := uuid.NewString()
	log := logger.OrNop(s.env.Logger).WithFields(logger.Fields(
		logger.FieldRecordID, s.recordID,
		logger.FieldTask, s.unit.Task,
		logger.FieldModality, s.unit.Modality,
		logger.FieldStepLabel, s.def.Label,
		logger.FieldRunID, runID,
	))
	if s.env.Store == nil {
		return errors.Configuration("step %s has no log store", s)
	}

	w, err := s.env.Store.Open(s.recordID, logstore.Fields{
		Task:      s.unit.Task,
		Modality:  s.unit.Modality,
		StepLabel: s.def.Label,
		RunID:     runID,
	})
	if err != nil {
		log.Error("cannot open record log", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			log.Warn("closing record log", logger.Fields(logger.FieldError, cerr.Error()))
		}
	}()

	w.Status(status.Init, MsgInit)

	if !opts.IgnoreMissing && !s.io.Input.AllExist() {
		w.Status(status.DataNotAvailable, MsgNoData)
		log.Debug(MsgNoData)
		return nil
	}
	if !opts.Force && s.io.Output.AllExist() {
		w.Status(status.Done, MsgAlreadyDone)
		log.Debug(MsgAlreadyDone)
		return nil
	}

	w.Status(status.Processing, MsgProcessing)
	log.Info(MsgProcessing)

	if err := s.prepareOutputs(); err != nil {
		w.Status(status.Error, fmt.Sprintf("%s: %v", MsgOutputDirErr, err))
		log.Error(MsgOutputDirErr, logger.Fields(logger.FieldError, err.Error()))
		if opts.Debug {
			return err
		}
		return nil
	}

	inv := &Invocation{
		DataRoot:      s.env.DataRoot,
		RecordID:      s.recordID,
		Task:          s.unit.Task,
		Modality:      s.unit.Modality,
		Label:         s.def.Label,
		Options:       s.env.Options,
		Paths:         s.io,
		IgnoreMissing: opts.IgnoreMissing,
		Log:           w.Logger(),
	}
	if serr := s.runScript(ctx, inv); serr != nil {
		w.Status(status.Error, serr.Error())
		log.Warn("step failed", logger.Fields(logger.FieldError, serr.Error()))
		if opts.Debug {
			return errors.ScriptFailed(s.def.Label, serr)
		}
		return nil
	}

	w.Status(status.Done, MsgFinished)
	log.Info(MsgFinished)
	return nil
}

// prepareOutputs creates the parent directory of every output path.
func (s *Step) prepareOutputs() error {
	for _, p := range s.io.Output.All() {
		dir := filepath.Dir(p)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IO("create output dir", dir, err)
		}
	}
	return nil
}

func (s *Step) runScript(ctx context.Context, inv *Invocation) (err error) {
	if s.def.Script == nil {
		return fmt.Errorf("step %s has no script", s.def.Label)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return s.def.Script.Run(ctx, inv)
}
