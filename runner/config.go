package runner

import (
	"fmt"
	"strings"

	"github.com/kbukum/recflow/resilience"
)

// Mode selects a scheduler.
type Mode string

// Supported modes. ModeDask is accepted as an alias of ModeParallel.
const (
	ModeMainProcess Mode = "main_process"
	ModeParallel    Mode = "parallel"
	ModeDask        Mode = "dask"
)

// ParseMode normalizes a configured mode. Empty selects ModeMainProcess.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMainProcess:
		return ModeMainProcess, nil
	case ModeParallel, ModeDask:
		return ModeParallel, nil
	}
	return "", fmt.Errorf("runner: unknown run mode %q", s)
}

// Config is the run section of the workspace configuration.
type Config struct {
	Mode string `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=main_process parallel dask"`
	// MaxParallel limits concurrently running graph nodes (0 = unlimited).
	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel" validate:"gte=0"`
	// MaxProcesses limits concurrently running command scripts.
	MaxProcesses int `mapstructure:"max_processes" yaml:"max_processes" validate:"gte=0"`
	// Asynchronous returns from graph submissions before the run ends.
	Asynchronous bool                   `mapstructure:"asynchronous" yaml:"asynchronous"`
	Retry        resilience.RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = string(ModeMainProcess)
	}
	if c.MaxProcesses == 0 {
		c.MaxProcesses = 4
	}
}
