package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/watchsync/internal/pkg/stacktrace"
)

// dispatch runs handler for one received message. A failing or panicking
// handler is logged and never stops the consumer loop.
func dispatch(ctx context.Context, driver string, handler Handler, msg Message) {
	if err := safeHandle(ctx, handler, msg); err != nil {
		slog.WarnContext(ctx, "messaging handler failed",
			"driver", driver,
			"source", msg.Source,
			"message_id", msg.ID,
			"error", err,
		)
	}
}

func safeHandle(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}

		stack := debug.Stack()
		var trace any = string(stack)
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			trace = paths
		}
		slog.ErrorContext(ctx, "panic in messaging handler", "source", msg.Source, "panic", rvr, "stack", trace)
		err = fmt.Errorf("messaging: handler panic: %v", rvr)
	}()

	return handler(ctx, msg)
}
