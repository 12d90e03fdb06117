// Package safego provides panic-recovering goroutine launchers for background work.
package safego

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Go launches fn in a new goroutine. A panic in fn is recovered and logged
// instead of crashing the process. Use it for fire-and-forget work such as
// audit writes and best-effort storage cleanup.
func Go(fn func()) {
	GoNamed("", fn)
}

// GoNamed is Go with a task name attached to the panic log line.
func GoNamed(name string, fn func()) {
	go func() {
		defer recoverAndLog(name)
		fn()
	}()
}

// GoTimeout runs fn in the background with a fresh context that is cancelled
// after d. The context is detached from any request so the work survives the
// response being written.
func GoTimeout(name string, d time.Duration, fn func(ctx context.Context)) {
	go func() {
		defer recoverAndLog(name)
		ctx, cancel := context.WithTimeout(context.Background(), d)
		defer cancel()
		fn(ctx)
	}()
}

func recoverAndLog(name string) {
	if r := recover(); r != nil {
		attrs := []any{"panic", r, "stack", string(debug.Stack())}
		if name != "" {
			attrs = append(attrs, "task", name)
		}
		slog.Error("recovered panic in background goroutine", attrs...)
	}
}
