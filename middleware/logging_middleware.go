package middleware

import (
	"context"
	"time"

	"mrpc/message"

	"go.uber.org/zap"
)

// LoggingMiddleware logs every dispatched request with its duration; failed
// calls are logged at warn level with the response message.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)

			fields := []zap.Field{
				zap.String("id", req.ID),
				zap.String("service", req.Service.Class),
				zap.String("method", req.Service.Method),
				zap.Duration("duration", time.Since(start)),
			}
			if !resp.OK() {
				logger.Warn("rpc failed", append(fields, zap.String("error", resp.Message))...)
				return resp
			}
			logger.Info("rpc", fields...)
			return resp
		}
	}
}
