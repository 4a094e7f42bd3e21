package workspace

import (
	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/runner"
	"github.com/kbukum/recflow/step"
)

type options struct {
	registry  *step.Registry
	log       *logger.Logger
	scheduler runner.Scheduler
	dataPath  string
}

// Option configures a Workspace.
type Option func(*options)

// WithRegistry supplies step definitions registered in code. Commands
// declared in the workspace file are added to it.
func WithRegistry(r *step.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger replaces the logger built from the log section.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithScheduler replaces the scheduler selected by run.mode.
func WithScheduler(s runner.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithDataPath overrides path.data.
func WithDataPath(path string) Option {
	return func(o *options) { o.dataPath = path }
}
