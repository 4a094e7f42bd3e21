package logger

import (
	"fmt"
	"slices"
)

// Config is the [log] section of the workspace file.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"` // json, console or pretty
	Output    string `yaml:"output" mapstructure:"output"` // stdout or stderr
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
}

var (
	levels  = []string{"trace", "debug", "info", "warn", "error", "disabled"}
	formats = []string{FormatJSON, FormatConsole, FormatPretty}
	outputs = []string{"stdout", "stderr"}
)

// ApplyDefaults fills empty settings: info level, console format on
// stdout, with timestamps.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	c.Timestamp = true
}

// Validate rejects unknown levels, formats and outputs.
func (c *Config) Validate() error {
	for _, check := range []struct {
		key, value string
		allowed    []string
	}{
		{"log.level", c.Level, levels},
		{"log.format", c.Format, formats},
		{"log.output", c.Output, outputs},
	} {
		if check.value == "" && check.key == "log.output" {
			continue
		}
		if !slices.Contains(check.allowed, check.value) {
			return fmt.Errorf("%s must be one of %v (got %q)", check.key, check.allowed, check.value)
		}
	}
	return nil
}
