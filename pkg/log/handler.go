package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// StackHandler is a slog handler that expands the "error" attribute of a record
// into an extra "stacktrace" attribute when the error carries a cockroachdb stack.
type StackHandler struct {
	handler slog.Handler
}

// WrapWithStack wraps handler with stack trace extraction.
func WrapWithStack(handler slog.Handler) slog.Handler {
	return &StackHandler{handler: handler}
}

func (h *StackHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h *StackHandler) Handle(ctx context.Context, r slog.Record) error {
	var stacktrace string
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		if err, ok := attr.Value.Any().(error); ok {
			stacktrace = extractStacktrace(err)
		}
		return false
	})
	if stacktrace != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, stacktrace))
	}
	return h.handler.Handle(ctx, r)
}

func (h *StackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StackHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *StackHandler) WithGroup(g string) slog.Handler {
	return &StackHandler{handler: h.handler.WithGroup(g)}
}

func extractStacktrace(err error) string {
	if safe := errors.GetSafeDetails(err).SafeDetails; len(safe) > 0 {
		return safe[0]
	}
	if errors.GetReportableStackTrace(err) != nil {
		return fmt.Sprintf("%+v", err)
	}
	return ""
}
