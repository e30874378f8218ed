// Package observability builds the structured logger and Prometheus
// collectors shared by all three OpsLog binaries, grounded on the
// teacher's internal/infra/observability.NewLogger but rebuilt around
// log/slog instead of zap (spec ambient stack: one handler built at
// process start, enriched with static fields, threaded through
// constructors).
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/AllEyesOnMyPon/OpsLog/internal/config"
)

// NewLogger builds a JSON slog.Logger for service at the given level,
// enriched with static "service" and "env" fields.
func NewLogger(cfg config.LogConfig, service, env string) *slog.Logger {
	level := parseLevel(cfg.Level)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", service, "env", env)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ctxKey is unexported so this package's context key never collides.
type ctxKey int

const loggerCtxKey ctxKey = iota

// WithContext attaches logger to ctx, typically at the top of the
// per-request logging middleware after adding request_id/method/path fields.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// FromContext retrieves the logger attached by WithContext, falling back
// to slog.Default() so call sites never need a nil check.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
