package logger

import "time"

// Field keys shared by recflow log entries and the record log files.
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldRecordID   = "record_id"
	FieldTask       = "task"
	FieldModality   = "modality"
	FieldStepLabel  = "step_label"
	FieldStepStatus = "step_status"
	FieldRunID      = "run_id"
	FieldOrigin     = "origin"
	FieldNode       = "node"
	FieldTime       = "time"
)

// Fields pairs up alternating keys and values. Non-string keys and a
// trailing key without value are dropped.
//
//	log.Info("step done", logger.Fields(logger.FieldRecordID, id, logger.FieldStepLabel, label))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if k, ok := kvs[i].(string); ok {
			m[k] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields describes a failed operation.
func ErrorFields(op string, err error) map[string]any {
	return map[string]any{FieldOperation: op, FieldError: err.Error()}
}

// DurationFields describes a timed operation in milliseconds.
func DurationFields(op string, d time.Duration) map[string]any {
	return map[string]any{FieldOperation: op, FieldDuration: d.Milliseconds()}
}
