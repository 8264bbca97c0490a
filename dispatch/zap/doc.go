// Package zap provides the go.uber.org/zap implementation of the log facade,
// with automatic trace/span correlation from the active OpenTelemetry span.
package zap
