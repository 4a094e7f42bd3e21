// Package process runs external programs used as processing steps.
//
// Run starts one subprocess in its own process group and stops the whole
// group on cancellation. Runner adds a shared concurrency limit and optional
// retry on top of Run.
package process
