package step

import (
	"context"

	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/pathpattern"
)

// Script is the user-supplied processing logic of a step.
type Script interface {
	Run(ctx context.Context, inv *Invocation) error
}

// ScriptFunc adapts a function to Script.
type ScriptFunc func(ctx context.Context, inv *Invocation) error

// Run calls f.
func (f ScriptFunc) Run(ctx context.Context, inv *Invocation) error { return f(ctx, inv) }

// Definition declares one processing stage of a modality.
type Definition struct {
	Label   string
	PathIn  pathpattern.Pattern
	PathOut pathpattern.Pattern
	Script  Script
}

// IO are the concrete input and output paths of a bound step.
type IO struct {
	Input  pathpattern.Paths
	Output pathpattern.Paths
}

// Invocation is everything a script needs for one record.
type Invocation struct {
	DataRoot      string
	RecordID      string
	Task          string
	Modality      string
	Label         string
	Options       map[string]string
	Paths         IO
	IgnoreMissing bool
	// Log writes into the record log, tagged with this step.
	Log *logger.Logger
}

// InputsExist reports whether every input path exists.
func (inv *Invocation) InputsExist() bool { return inv.Paths.Input.AllExist() }
