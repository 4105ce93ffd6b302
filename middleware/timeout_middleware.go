package middleware

import (
	"context"
	"time"

	"mrpc/message"
)

// TimeOutMiddleware answers with a failure once timeout elapses. The handler
// keeps running in the background and its context is cancelled; targets that
// take a context.Context can stop early.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.Failuref("request timed out")
			}
		}
	}
}
