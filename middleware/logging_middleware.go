package middleware

import (
	"context"
	"time"

	"github.com/polyrpc/polyrpc/internal/logging"
	"github.com/polyrpc/polyrpc/rpc"
)

var log = logging.Get("middleware")

// LoggingMiddleware records the service method, duration, and any errors for each RPC call.
// It captures the start time before calling next, and logs the elapsed time after next returns.
//
// Example output (category prefix, date and time, level, then the fields):
//
//	[middleware] 2024/01/02 15:04:05 INFO method=Arith.Add duration=42µs
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *rpc.Request) (*rpc.Response, *rpc.Fault) {
			start := time.Now()

			resp, fault := next(ctx, req)

			duration := time.Since(start)
			log.Infof("method=%s duration=%s", req.Method, duration)
			if fault != nil {
				log.Errorf("method=%s fault=%d %s", req.Method, fault.Code, fault.Message)
			}
			return resp, fault
		}
	}
}
