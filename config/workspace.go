package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kbukum/recflow/errors"
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/observability"
	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/runner"
	"github.com/kbukum/recflow/step"
	"github.com/kbukum/recflow/validation"
)

// WorkspaceConfig is the complete workspace configuration.
type WorkspaceConfig struct {
	Path          PathConfig           `yaml:"path" mapstructure:"path"`
	Records       RecordsConfig        `yaml:"records" mapstructure:"records"`
	Run           runner.Config        `yaml:"run" mapstructure:"run"`
	Tasks         []TaskConfig         `yaml:"tasks" mapstructure:"tasks" validate:"min=1,dive"`
	Modalities    []ModalityConfig     `yaml:"modalities" mapstructure:"modalities" validate:"min=1,dive"`
	Options       map[string]string    `yaml:"options" mapstructure:"options"`
	Log           logger.Config        `yaml:"log" mapstructure:"log"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	// File is the configuration file the workspace was loaded from.
	File string `yaml:"-" mapstructure:"-"`
}

// PathConfig locates the data and script directories.
type PathConfig struct {
	Data    string `yaml:"data" mapstructure:"data"`
	Scripts string `yaml:"scripts" mapstructure:"scripts"`
}

// RecordsConfig configures record discovery.
type RecordsConfig struct {
	// IDPattern is the regular expression a record id must match.
	IDPattern string `yaml:"id_pattern" mapstructure:"id_pattern"`
}

// TaskConfig declares a task and the modalities recorded for it.
type TaskConfig struct {
	Name       string   `yaml:"name" mapstructure:"name" validate:"required"`
	Modalities []string `yaml:"modalities" mapstructure:"modalities" validate:"min=1"`
}

// ModalityConfig declares the steps of a modality.
type ModalityConfig struct {
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Scripts are step labels run for every task, in order.
	Scripts []string `yaml:"scripts" mapstructure:"scripts"`
	// TaskScripts are step labels appended for one task.
	TaskScripts []TaskScriptsConfig `yaml:"task_scripts" mapstructure:"task_scripts" validate:"dive"`
	Model       ModelConfig         `yaml:"model" mapstructure:"model"`
	Commands    []CommandConfig     `yaml:"commands" mapstructure:"commands" validate:"dive"`
}

// TaskScriptsConfig lists the task-specific steps of a modality.
type TaskScriptsConfig struct {
	Task    string   `yaml:"task" mapstructure:"task" validate:"required"`
	Scripts []string `yaml:"scripts" mapstructure:"scripts"`
}

// ModelConfig selects how record ids are discovered.
type ModelConfig struct {
	Kind     string   `yaml:"kind" mapstructure:"kind" validate:"omitempty,oneof=glob csv_index"`
	CSVPath  []string `yaml:"csv_path" mapstructure:"csv_path"`
	IDColumn string   `yaml:"id_column" mapstructure:"id_column"`
}

// CommandConfig declares a step that runs an external program.
//
// PathIn and PathOut are either a list of segments, a "/"-separated string,
// or a map from output name to either of those. Viper lower-cases map keys,
// so output names are lower case.
type CommandConfig struct {
	Label   string        `yaml:"label" mapstructure:"label" validate:"required"`
	Binary  string        `yaml:"binary" mapstructure:"binary" validate:"required"`
	Args    []string      `yaml:"args" mapstructure:"args"`
	PathIn  any           `yaml:"path_in" mapstructure:"path_in"`
	PathOut any           `yaml:"path_out" mapstructure:"path_out"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Patterns decodes PathIn and PathOut.
func (c CommandConfig) Patterns() (in, out pathpattern.Pattern, err error) {
	if in, err = ParsePattern(c.PathIn); err != nil {
		return in, out, fmt.Errorf("path_in: %w", err)
	}
	if out, err = ParsePattern(c.PathOut); err != nil {
		return in, out, fmt.Errorf("path_out: %w", err)
	}
	return in, out, nil
}

// Order returns the configured step order.
func (m ModalityConfig) Order() step.Order {
	o := step.Order{Scripts: m.Scripts, TaskScripts: make(map[string][]string, len(m.TaskScripts))}
	for _, ts := range m.TaskScripts {
		o.TaskScripts[ts.Task] = append(o.TaskScripts[ts.Task], ts.Scripts...)
	}
	return o
}

// RecordModel returns the record model of the modality.
func (m ModalityConfig) RecordModel() step.Model {
	if m.Model.Kind == step.ModelCSVIndex {
		return step.CSVIndexModel{Path: m.Model.CSVPath, IDColumn: m.Model.IDColumn}
	}
	return step.GlobModel{}
}

// ApplyDefaults fills unset fields.
func (c *WorkspaceConfig) ApplyDefaults() {
	if c.Path.Data == "" {
		c.Path.Data = "."
	}
	if c.Records.IDPattern == "" {
		c.Records.IDPattern = pathpattern.DefaultIDPattern
	}
	for i := range c.Modalities {
		if c.Modalities[i].Model.Kind == "" {
			c.Modalities[i].Model.Kind = step.ModelGlob
		}
	}
	c.Run.ApplyDefaults()
	c.Log.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// ResolvePaths makes relative data and script paths absolute against base.
func (c *WorkspaceConfig) ResolvePaths(base string) error {
	for _, p := range []*string{&c.Path.Data, &c.Path.Scripts} {
		if *p == "" {
			continue
		}
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return err
		}
		*p = abs
	}
	return nil
}

// Validate checks the configuration. Every failure is a configuration error.
func (c *WorkspaceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return errors.Configuration("workspace: %s", message(err)).WithCause(err)
	}

	v := validation.New()
	v.Required("path.data", c.Path.Data).
		Regexp("records.id_pattern", c.Records.IDPattern)

	modalities := make(map[string]ModalityConfig, len(c.Modalities))
	var modalityNames []string
	for _, m := range c.Modalities {
		modalities[m.Name] = m
		modalityNames = append(modalityNames, m.Name)
	}
	v.Unique("modalities", modalityNames)

	tasks := make(map[string]bool, len(c.Tasks))
	var taskNames []string
	for i, t := range c.Tasks {
		tasks[t.Name] = true
		taskNames = append(taskNames, t.Name)
		for _, m := range t.Modalities {
			_, ok := modalities[m]
			v.Known(fmt.Sprintf("tasks[%d].modalities", i), "modality", m, ok)
		}
	}
	v.Unique("tasks", taskNames)

	for i, m := range c.Modalities {
		field := fmt.Sprintf("modalities[%d].", i)
		mv := validation.New()
		for j, ts := range m.TaskScripts {
			mv.Known(fmt.Sprintf("task_scripts[%d].task", j), "task", ts.Task, tasks[ts.Task])
		}
		if m.Model.Kind == step.ModelCSVIndex {
			mv.Custom(len(m.Model.CSVPath) > 0, "model.csv_path", "is required for csv_index models")
		}
		for j, cmd := range m.Commands {
			if _, _, err := cmd.Patterns(); err != nil {
				mv.AddError(fmt.Sprintf("commands[%d]", j), err.Error())
			}
		}
		v.Merge(field, mv)
	}

	if err := c.Log.Validate(); err != nil {
		v.AddError("log", err.Error())
	}

	if appErr := v.Validate(); appErr != nil {
		return errors.Configuration("workspace: %s", appErr.Message).WithCause(appErr)
	}
	return nil
}

func message(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// LoadWorkspace loads, resolves and validates the workspace configuration
// at path, a file or a directory holding one of FileNames.
func LoadWorkspace(path string, opts ...LoaderOption) (*WorkspaceConfig, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = OSFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files, err := resolver.ResolveFiles(path, lc)
	if err != nil {
		return nil, errors.Configuration("workspace: %v", err).WithCause(err)
	}

	var cfg WorkspaceConfig
	if err := readFiles(&cfg, files, lc.FileSystem); err != nil {
		return nil, errors.Configuration("workspace: %v", err).WithCause(err)
	}
	cfg.File = files.ConfigFile

	cfg.ApplyDefaults()
	if err := cfg.ResolvePaths(filepath.Dir(files.ConfigFile)); err != nil {
		return nil, errors.Configuration("workspace: resolving paths: %v", err).WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
