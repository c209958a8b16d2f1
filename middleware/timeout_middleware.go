package middleware

import (
	"context"
	"time"

	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/rpcerr"
)

// TimeOutMiddleware enforces a maximum duration for each dispatch.
// If the handler doesn't complete within the timeout, it returns a
// fault immediately.
//
// Implementation:
//  1. Create a context with timeout (ctx.Done() fires when timeout expires)
//  2. Run the next handler in a goroutine, sending its result to a channel
//  3. Select between the result channel and ctx.Done()
//
// Note: the handler goroutine is NOT cancelled — it continues running in
// the background. The timeout only controls when the caller gives up
// waiting. For true cancellation, the handler must check ctx.Done()
// internally.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *rpc.Request) (*rpc.Response, *rpc.Fault) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp  *rpc.Response
				fault *rpc.Fault
			}
			done := make(chan result, 1)
			go func() {
				resp, fault := next(ctx, req)
				done <- result{resp, fault}
			}()

			select {
			case r := <-done:
				return r.resp, r.fault
			case <-ctx.Done():
				return nil, &rpc.Fault{
					ID:      req.ID,
					Code:    rpcerr.CodeTimeout,
					Message: "request timed out",
				}
			}
		}
	}
}
