package process_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/recflow/process"
)

func TestRunOutputs(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		cmd        process.Command
		wantErr    bool
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "stdout",
			cmd:        process.Command{Binary: "echo", Args: []string{"REC-1", "RS"}},
			wantStdout: "REC-1 RS",
		},
		{
			name:       "stdin",
			cmd:        process.Command{Binary: "cat", Stdin: strings.NewReader("a,b\n1,2")},
			wantStdout: "a,b\n1,2",
		},
		{
			name:       "stderr without failure",
			cmd:        process.Command{Binary: "sh", Args: []string{"-c", "echo warning >&2"}},
			wantStderr: "warning",
		},
		{
			name:       "env is merged",
			cmd:        process.Command{Binary: "sh", Args: []string{"-c", "echo $RECFLOW_RECORD_ID"}, Env: []string{"RECFLOW_RECORD_ID=REC-7"}},
			wantStdout: "REC-7",
		},
		{
			name:       "working directory",
			cmd:        process.Command{Binary: "pwd", Dir: dir},
			wantStdout: dir,
		},
		{
			name:     "exit code",
			cmd:      process.Command{Binary: "sh", Args: []string{"-c", "exit 42"}},
			wantErr:  true,
			wantCode: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := process.Run(context.Background(), tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if result.ExitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d", result.ExitCode, tt.wantCode)
			}
			if got := strings.TrimSpace(string(result.Stdout)); got != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", got, tt.wantStdout)
			}
			if got := strings.TrimSpace(string(result.Stderr)); got != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", got, tt.wantStderr)
			}
		})
	}
}

func TestRunEmptyBinary(t *testing.T) {
	if _, err := process.Run(context.Background(), process.Command{}); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := process.Run(ctx, process.Command{
		Binary:      "sh",
		Args:        []string{"-c", "sleep 10 & wait"},
		GracePeriod: 500 * time.Millisecond,
	})
	if err == nil || !strings.Contains(err.Error(), "killed by context") {
		t.Fatalf("expected context error, got %v", err)
	}
	if result.Duration > 5*time.Second {
		t.Fatalf("process group not stopped in time: %v", result.Duration)
	}
}

func TestRunTimeout(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary:      "sleep",
		Args:        []string{"10"},
		Timeout:     100 * time.Millisecond,
		GracePeriod: 200 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error from timeout")
	}
	if result.Duration > 5*time.Second {
		t.Fatalf("process took too long to kill: %v", result.Duration)
	}
}

func TestRunErrorIncludesStderrTail(t *testing.T) {
	_, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo first >&2; echo boom >&2; exit 3"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr tail in error, got %q", err.Error())
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  process.Command
		want string
	}{
		{process.Command{Binary: "filter.sh"}, "filter.sh"},
		{process.Command{Binary: "cp", Args: []string{"/data/RAW/a.csv", "/data/PROC/a.csv"}}, "cp /data/RAW/a.csv /data/PROC/a.csv"},
		{process.Command{Binary: "sh", Args: []string{"-c", "echo it's done"}}, `sh -c 'echo it'\''s done'`},
		{process.Command{Binary: "run", Args: []string{""}}, "run ''"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
