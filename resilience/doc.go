// Package resilience provides the retry and bulkhead patterns used by task
// execution, external tool invocation and object storage publishing.
//
//   - Retry: retries failed operations with exponential backoff and jitter
//   - Bulkhead: limits concurrent access to a shared resource
//
// Example: an external tool invoked from many concurrent pipelines, with
// transient failures retried:
//
//	tools := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "tools", MaxConcurrent: 4, MaxWait: -1})
//	err := resilience.RetryFunc(ctx, resilience.DefaultRetryConfig(), func() error {
//	    return tools.Execute(ctx, func() error { return run(ctx) })
//	})
package resilience
