// Package dag provides a DAG (Directed Acyclic Graph) execution engine.
//
// Graphs are executed level by level, a node sitting one level below its
// deepest dependency. Nodes of one level run concurrently up to Engine.MaxParallel. A failed node never stops its
// siblings; nodes depending on it are marked upstream_failed and not run.
//
// Graphs are usually declared as a Pipeline (YAML-compatible, with
// includes) and resolved against a Registry of node implementations:
//   - ExecuteBatch: runs ALL nodes in dependency order
//   - ExecuteFiltered: runs only nodes accepted by a NodeFilter; the others
//     are marked skipped and do not block their dependents
package dag
