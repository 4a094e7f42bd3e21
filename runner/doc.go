// Package runner executes plans.
//
// A Scheduler receives a plan.Plan and the run options of one request.
// Sequential walks step nodes in plan order on the calling goroutine. Graph
// converts the plan into a dag.Pipeline with one included sub-pipeline per
// record and executes it on a dag.Engine with level parallelism, retry and
// tracing. SavePipelines writes those pipelines as YAML and LoadPipelines
// reads them back for dag.ResolvePipeline.
//
// Manager selects the scheduler from the run configuration:
//
//	m, err := runner.New(cfg.Run, log)
//	report, err := m.Run(ctx, records, step.RunOptions{Force: true})
package runner
