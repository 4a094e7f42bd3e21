package process

import (
	"io"
	"strings"
	"time"
)

// Command is one subprocess invocation.
type Command struct {
	Binary string
	Args   []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env entries (KEY=value) are added to the parent environment.
	Env   []string
	Stdin io.Reader
	// Timeout bounds the run. Zero means the context alone decides.
	Timeout time.Duration
	// GracePeriod separates SIGTERM from SIGKILL. Zero means 5s.
	GracePeriod time.Duration
}

// String renders the command line, quoting arguments that hold spaces.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Binary)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
