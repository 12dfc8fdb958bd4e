package credlife

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/credlife/internal/log"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine uses it for
// per-IP login throttling and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithLogger attaches a request-scoped logger to ctx. Engine operations log through
// it instead of the engine logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return log.Into(ctx, logger)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
