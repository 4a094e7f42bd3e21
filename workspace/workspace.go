package workspace

import (
	"context"
	"iter"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kbukum/recflow/config"
	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/logstore"
	"github.com/kbukum/recflow/observability"
	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/plan"
	"github.com/kbukum/recflow/process"
	"github.com/kbukum/recflow/runner"
	"github.com/kbukum/recflow/scope"
	"github.com/kbukum/recflow/step"
	"github.com/kbukum/recflow/version"
)

// ServiceName identifies recflow in logs and telemetry.
const ServiceName = "recflow"

// LogDir is the directory under the data root holding record logs.
const LogDir = "LOG"

// Workspace is an opened dataset.
type Workspace struct {
	cfg       *config.WorkspaceConfig
	dataRoot  string
	idRe      *regexp.Regexp
	top       *scope.Topology
	registry  *step.Registry
	store     *logstore.Store
	procs     *process.Runner
	manager   *runner.Manager
	providers *observability.Providers
	log       *logger.Logger
}

// Open loads the workspace file at path, a file or a directory holding
// one of config.FileNames, and builds the workspace.
func Open(path string, opts ...Option) (*Workspace, error) {
	cfg, err := config.LoadWorkspace(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// New builds a workspace from cfg. Relative paths in cfg are taken as is.
func New(cfg *config.WorkspaceConfig, opts ...Option) (*Workspace, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	if o.dataPath != "" {
		cfg.Path.Data = o.dataPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataRoot, err := filepath.Abs(cfg.Path.Data)
	if err != nil {
		return nil, errors.Configuration("path.data: %v", err)
	}
	idRe, err := pathpattern.CompileID(cfg.Records.IDPattern)
	if err != nil {
		return nil, errors.Configuration("records.id_pattern: %v", err)
	}

	log := o.log
	if log == nil {
		log = logger.New(&cfg.Log, ServiceName)
	}

	ws := &Workspace{
		cfg:      cfg,
		dataRoot: dataRoot,
		idRe:     idRe,
		registry: o.registry,
		log:      log.WithComponent("workspace"),
	}
	if ws.registry == nil {
		ws.registry = step.NewRegistry()
	}

	tasks := make([]scope.TaskDef, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		tasks[i] = scope.TaskDef{Name: t.Name, Modalities: t.Modalities}
	}
	modalities := make([]string, len(cfg.Modalities))
	for i, m := range cfg.Modalities {
		modalities[i] = m.Name
	}
	if ws.top, err = scope.NewTopology(tasks, modalities); err != nil {
		return nil, err
	}

	ws.procs = process.NewRunner(process.RunnerConfig{MaxConcurrent: cfg.Run.MaxProcesses})
	if err := ws.registerModalities(); err != nil {
		return nil, err
	}
	if err := ws.registry.Validate(ws.top); err != nil {
		return nil, err
	}

	if ws.store, err = logstore.New(filepath.Join(dataRoot, LogDir)); err != nil {
		return nil, err
	}

	ws.providers, err = observability.Setup(context.Background(), cfg.Observability, ServiceName, version.Short(), log)
	if err != nil {
		return nil, errors.Configuration("observability: %v", err).WithCause(err)
	}

	ropts := []runner.Option{runner.WithGraphOptions(runner.WithMetrics(ws.providers.Metrics))}
	if o.scheduler != nil {
		ropts = append(ropts, runner.WithScheduler(o.scheduler))
	}
	if ws.manager, err = runner.New(cfg.Run, log, ropts...); err != nil {
		return nil, err
	}

	fields := version.Get().Fields()
	fields["data"] = dataRoot
	fields["mode"] = string(ws.manager.Mode())
	fields["tasks"] = len(cfg.Tasks)
	fields["modalities"] = len(cfg.Modalities)
	ws.log.Info("workspace opened", fields)
	return ws, nil
}

// registerModalities adds the configured commands, step orders and record
// models to the registry.
func (w *Workspace) registerModalities() error {
	for _, m := range w.cfg.Modalities {
		for _, c := range m.Commands {
			in, out, err := c.Patterns()
			if err != nil {
				return errors.Configuration("modality %q command %q: %v", m.Name, c.Label, err)
			}
			def := step.Definition{
				Label:   c.Label,
				PathIn:  in,
				PathOut: out,
				Script: &step.CommandScript{
					Binary:  w.binary(c.Binary),
					Args:    c.Args,
					Timeout: c.Timeout,
					Runner:  w.procs,
				},
			}
			if err := w.registry.Register(m.Name, def); err != nil {
				return err
			}
		}
		w.registry.SetOrder(m.Name, m.Order())
		// Glob is the registry default; keep models registered in code.
		if m.Model.Kind == step.ModelCSVIndex {
			w.registry.SetModel(m.Name, m.RecordModel())
		}
	}
	return nil
}

// binary resolves a relative command against path.scripts when the file
// exists there. Anything else is left to PATH lookup.
func (w *Workspace) binary(name string) string {
	scripts := w.cfg.Path.Scripts
	if scripts == "" || filepath.IsAbs(name) || strings.Contains(name, "{") {
		return name
	}
	if candidate := filepath.Join(scripts, name); pathpattern.Exists(candidate) {
		return candidate
	}
	return name
}

// Config returns the workspace configuration.
func (w *Workspace) Config() *config.WorkspaceConfig { return w.cfg }

// DataRoot returns the absolute data directory.
func (w *Workspace) DataRoot() string { return w.dataRoot }

// Topology returns the task/modality table.
func (w *Workspace) Topology() *scope.Topology { return w.top }

// Registry returns the step registry.
func (w *Workspace) Registry() *step.Registry { return w.registry }

// Store returns the record log store.
func (w *Workspace) Store() *logstore.Store { return w.store }

// Manager returns the run manager.
func (w *Workspace) Manager() *runner.Manager { return w.manager }

// Records returns the collection of every record.
func (w *Workspace) Records() *RecordCollection {
	return &RecordCollection{ws: w}
}

// Close flushes and stops the telemetry providers.
func (w *Workspace) Close(ctx context.Context) error {
	if err := w.providers.Shutdown(ctx); err != nil {
		w.log.Warn("observability shutdown", logger.ErrorFields("close", err))
		return err
	}
	return nil
}

func (w *Workspace) env() step.Env {
	return step.Env{
		DataRoot: w.dataRoot,
		Store:    w.store,
		Logger:   w.log,
		Options:  w.cfg.Options,
	}
}

// validID checks id against records.id_pattern.
func (w *Workspace) validID(id string) error {
	if !w.idRe.MatchString(id) {
		return errors.InvalidInput("record_id", "\""+id+"\" does not match records.id_pattern")
	}
	return nil
}

// bind builds the steps of recordID for every unit inside s.
func (w *Workspace) bind(recordID string, s scope.Scope) []plan.UnitSteps {
	env := w.env()
	var units []plan.UnitSteps
	for _, u := range w.top.Units(s) {
		defs, _ := w.registry.Collection(w.top, u).All()
		steps := make([]*step.Step, len(defs))
		for i, d := range defs {
			steps[i] = step.Bind(d, i+1, recordID, u, env)
		}
		units = append(units, plan.UnitSteps{Unit: u, Steps: steps})
	}
	return units
}

// unitIDs lists the record ids of one unit through its modality model.
func (w *Workspace) unitIDs(u scope.Scope) iter.Seq[string] {
	return w.registry.Model(u.Modality).IterIDs(step.UnitContext{
		DataRoot:  w.dataRoot,
		IDPattern: w.cfg.Records.IDPattern,
		Unit:      u,
		Steps:     w.registry.Collection(w.top, u),
	})
}
