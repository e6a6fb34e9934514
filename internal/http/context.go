package http

import (
	"context"
	"log/slog"

	"github.com/example/exam-timeline/internal/logging"
)

type contextKey string

const allocationIDContextKey contextKey = "allocation_id"

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithAllocationID injects the allocation identifier resolved from the request path.
func ContextWithAllocationID(ctx context.Context, allocationID string) context.Context {
	return context.WithValue(ctx, allocationIDContextKey, allocationID)
}

// AllocationIDFromContext extracts an allocation identifier previously associated with the context.
func AllocationIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(allocationIDContextKey).(string)
	return id, ok
}
