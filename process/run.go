package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const defaultGracePeriod = 5 * time.Second

// stderrTailLines is how much of stderr a failure message quotes.
const stderrTailLines = 3

// Run starts cmd in its own process group and waits for it. When ctx is
// done or cmd.Timeout passes, the whole group gets SIGTERM and, after
// the grace period, SIGKILL. The Result is returned even on failure.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := build(ctx, cmd, &stdout, &stderr)

	start := time.Now()
	runErr := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if runErr == nil {
		return res, nil
	}
	return res, describe(ctx, cmd, res, runErr)
}

func build(ctx context.Context, cmd Command, stdout, stderr *bytes.Buffer) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // binaries come from workspace configuration
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	c.Stdout = stdout
	c.Stderr = stderr

	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = cmd.GracePeriod
	if c.WaitDelay == 0 {
		c.WaitDelay = defaultGracePeriod
	}
	return c
}

func describe(ctx context.Context, cmd Command, res *Result, runErr error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("process: %s killed by context: %w", cmd.Binary, err)
	}
	msg := fmt.Sprintf("process: %s exit code %d", cmd.Binary, res.ExitCode)
	if tail := res.StderrTail(stderrTailLines); tail != "" {
		msg += ": " + tail
	}
	return fmt.Errorf("%s: %w", msg, runErr)
}
