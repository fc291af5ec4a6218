package recovery

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// Go runs fn on a new goroutine. A panic inside fn is logged together
// with its stack and swallowed, so a single failing task does not take
// the process down with it.
func Go(logger *zap.Logger, task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Recovered from panic, process continues running",
					zap.String("task", task),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
