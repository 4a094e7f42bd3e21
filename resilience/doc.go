// Package resilience provides the retry and concurrency-limit patterns used
// by the graph engine and the subprocess runner.
//
//   - Retry: re-runs failed operations with exponential backoff, by default
//     only for errors marked retryable.
//   - Bulkhead: bounds concurrent calls, optionally waiting for a free slot.
//
// Example:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4, MaxWait: resilience.WaitForever})
//	err := bh.Execute(ctx, func() error {
//	    return resilience.RetryFunc(ctx, resilience.DefaultRetryConfig(), runStep)
//	})
package resilience
