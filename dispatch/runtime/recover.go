package runtime

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
)

// RecoverAndLog recovers from a panic, logs it with a stack trace, and lets
// execution continue. Use it in defer statements inside worker loops where a
// single bad message must not take the process down.
func RecoverAndLog(ctx context.Context, logger log.Logger, component, name string) {
	if r := recover(); r != nil {
		logPanic(ctx, logger, component, name, r, debug.Stack())
	}
}

// SafeGo runs fn on a new goroutine with panic recovery attached.
func SafeGo(logger log.Logger, component, name string, fn func()) {
	go func() {
		defer RecoverAndLog(context.Background(), logger, component, name)

		fn()
	}()
}

func logPanic(ctx context.Context, logger log.Logger, component, name string, value any, stack []byte) {
	if nilcheck.Interface(logger) {
		return
	}

	logger.Log(ctx, log.LevelError, "panic recovered",
		log.String("component", component),
		log.String("goroutine", name),
		log.String("panic", formatPanicValue(value)),
		log.String("stack", string(stack)),
	)
}

func formatPanicValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "<nil>"
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
