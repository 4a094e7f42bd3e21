package step

import (
	"context"
	"strings"
	"time"

	"github.com/kbukum/recflow/logger"
	"github.com/kbukum/recflow/logstore"
	"github.com/kbukum/recflow/pathpattern"
	"github.com/kbukum/recflow/process"
)

// CommandScript runs an external program as a step. Args may use {id},
// {task}, {modality}, {label}, {data}, {input}, {output}, {input_<name>},
// {output_<name>} and workspace options as placeholders.
type CommandScript struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	Runner  *process.Runner
}

// Run implements Script.
func (c *CommandScript) Run(ctx context.Context, inv *Invocation) error {
	vars := pathpattern.Vars{ID: inv.RecordID, Task: inv.Task, Options: commandVars(inv)}
	cmd := process.Command{
		Binary:  vars.Format(c.Binary),
		Args:    make([]string, len(c.Args)),
		Dir:     inv.DataRoot,
		Timeout: c.Timeout,
		Env: []string{
			"RECFLOW_RECORD_ID=" + inv.RecordID,
			"RECFLOW_TASK=" + inv.Task,
			"RECFLOW_MODALITY=" + inv.Modality,
			"RECFLOW_STEP=" + inv.Label,
			"RECFLOW_DATA=" + inv.DataRoot,
		},
	}
	for i, a := range c.Args {
		cmd.Args[i] = vars.Format(a)
	}

	var (
		res *process.Result
		err error
	)
	if c.Runner != nil {
		res, err = c.Runner.Run(ctx, cmd)
	} else {
		res, err = process.Run(ctx, cmd)
	}

	log := logger.OrNop(inv.Log)
	if res != nil {
		if out := strings.TrimSpace(string(res.Stdout)); out != "" {
			log.Info(logstore.Truncate(out), logger.Fields("stream", "stdout"))
		}
		log.Debug("command exited", logger.Fields(
			"command", cmd.String(),
			"exit_code", res.ExitCode,
			logger.FieldDuration, res.Duration.Milliseconds(),
		))
	}
	return err
}

func commandVars(inv *Invocation) map[string]string {
	m := make(map[string]string, len(inv.Options)+8)
	for k, v := range inv.Options {
		m[k] = v
	}
	m["modality"] = inv.Modality
	m["label"] = inv.Label
	m["data"] = inv.DataRoot
	addPaths(m, "input", inv.Paths.Input)
	addPaths(m, "output", inv.Paths.Output)
	return m
}

func addPaths(m map[string]string, prefix string, ps pathpattern.Paths) {
	if !ps.IsNamed() {
		m[prefix] = ps.Single()
		return
	}
	m[prefix] = strings.Join(ps.All(), " ")
	for _, l := range ps.Labels() {
		p, _ := ps.Get(l)
		m[prefix+"_"+l] = p
	}
}
