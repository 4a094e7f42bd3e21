package logstore

import (
	"time"

	"github.com/kbukum/recflow/status"
)

// Origins of log entries.
const (
	OriginStatus = "status"
	OriginScript = "script"
)

// Entry is one decoded log line.
type Entry struct {
	Level      string       `json:"level"`
	Time       time.Time    `json:"time"`
	RecordID   string       `json:"record_id"`
	Task       string       `json:"task,omitempty"`
	Modality   string       `json:"modality,omitempty"`
	StepLabel  string       `json:"step_label,omitempty"`
	StepStatus *status.Code `json:"step_status,omitempty"`
	RunID      string       `json:"run_id,omitempty"`
	Origin     string       `json:"origin,omitempty"`
	Message    string       `json:"message"`
}

// HasStatus reports whether the entry carries a step status.
func (e Entry) HasStatus() bool { return e.StepStatus != nil }

// Filter restricts Read results. Empty fields match anything.
type Filter struct {
	Task       string
	Modality   string
	StepLabel  string
	StatusOnly bool
}

func (f Filter) match(e Entry) bool {
	if f.Task != "" && e.Task != f.Task {
		return false
	}
	if f.Modality != "" && e.Modality != f.Modality {
		return false
	}
	if f.StepLabel != "" && e.StepLabel != f.StepLabel {
		return false
	}
	if f.StatusOnly && !e.HasStatus() {
		return false
	}
	return true
}
