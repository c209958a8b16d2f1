package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/polyrpc/polyrpc/rpc"
)

// RetryMiddleware retries a failed dispatch up to maxRetries times with
// exponential backoff, but only for faults that look transient (a
// timeout or a connection refusal surfacing from a downstream call the
// handler itself made) — a business-logic fault (bad arguments, method
// not found) is returned immediately since retrying it would only
// reproduce the same failure.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *rpc.Request) (*rpc.Response, *rpc.Fault) {
			resp, fault := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if fault == nil {
					return resp, nil
				}
				if !isRetryable(fault.Message) {
					return resp, fault
				}
				log.Warnf("retry %d for %s: %s", i+1, req.Method, fault.Message)
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp, fault = next(ctx, req)
			}
			return resp, fault
		}
	}
}

func isRetryable(msg string) bool {
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused")
}
