// Package errors provides the structured error type used across recflow.
// Errors carry a machine-readable code, a human message, optional details,
// and a retryable flag consulted by the graph engine's retry policy.
package errors
