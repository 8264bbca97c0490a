package log

import "context"

type nopLogger struct{}

// NewNop returns a Logger that discards everything. It is used as the
// fallback when a component is constructed without a logger.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Log(context.Context, Level, string, ...Field) {}

func (n nopLogger) With(...Field) Logger { return n }

func (nopLogger) Enabled(Level) bool { return false }

func (nopLogger) Sync(context.Context) error { return nil }
