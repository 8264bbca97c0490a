// Package backoff provides exponential retry delays with optional jitter and
// a context-aware wait.
package backoff
