package middleware

import (
	"context"

	"mrpc/message"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware rejects requests beyond r per second (token bucket with
// the given burst).
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.Failuref("rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
