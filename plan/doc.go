// Package plan turns bound steps into an engine-agnostic dependency graph.
//
// Nodes are keyed by (stage, name). Source nodes ("raw", path) stand for
// input files that no step produces, step nodes (label, path) run a step,
// split nodes fan a step with named outputs out into one node per output,
// and join nodes gather the terminal nodes of a task and of a record:
//
//	raw:EEG/sub-01.raw -> filter:EEG/sub-01_filt.fif -> task:sub-01-rest -> record:sub-01
//
// Nodes are kept in insertion order (record, task, modality, step), which is
// the order a sequential scheduler executes them in. A step shared by the
// units of several tasks is one node, placed after all of its dependencies.
package plan
