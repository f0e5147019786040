package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack trace. It
// must be called directly in a defer statement:
//
//	defer observability.RecoverPanic(logger, "users gauge refresh")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// Guard wraps fn so a panic inside it is logged instead of killing the
// process. Used for background jobs run by the scheduler.
func Guard(logger *Logger, where string, fn func()) func() {
	return func() {
		defer RecoverPanic(logger, where)
		fn()
	}
}

func logPanic(logger *Logger, where string, r interface{}) {
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}
