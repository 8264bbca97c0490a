// Package runtime provides panic-recovery helpers for long-lived worker
// goroutines.
package runtime
