// Package log defines the structured logging facade used by lib-dispatch.
//
// The production implementation lives in the zap package; NewNop provides a
// safe default for tests and optional wiring.
package log
