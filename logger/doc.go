// Package logger provides structured logging for recflow using zerolog.
//
// It supports JSON and console output, level configuration, and loggers
// scoped with structured fields. Loggers are passed explicitly to every
// component; there is no process-wide named logger registry.
//
// # Configuration
//
//	[log]
//	level = "info"
//	format = "console"
//
// # Usage
//
//	log := logger.New(&cfg, "recflow").WithFields(logger.Fields(logger.FieldRecordID, id))
//	log.Info("step finished", logger.Fields(logger.FieldStepLabel, "preprocess"))
package logger
