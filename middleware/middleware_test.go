package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/si"
)

func echoHandler(ctx context.Context, req *rpc.Request) (*rpc.Response, *rpc.Fault) {
	result := si.NewValue()
	result.SetString("ok")
	return &rpc.Response{ID: req.ID, Result: result}, nil
}

func slowHandler(ctx context.Context, req *rpc.Request) (*rpc.Response, *rpc.Fault) {
	time.Sleep(200 * time.Millisecond)
	return echoHandler(ctx, req)
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	req := &rpc.Request{Method: "Arith.Add"}
	resp, fault := handler(context.Background(), req)

	require.Nil(t, fault)
	require.NotNil(t, resp)
	got, err := resp.Result.GetString()
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	req := &rpc.Request{Method: "Arith.Add"}
	_, fault := handler(context.Background(), req)

	require.Nil(t, fault)
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	req := &rpc.Request{Method: "Arith.Add"}
	_, fault := handler(context.Background(), req)

	require.NotNil(t, fault)
	require.Equal(t, "request timed out", fault.Message)
}

func TestRateLimit(t *testing.T) {
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := &rpc.Request{Method: "Arith.Add"}

	for i := 0; i < 2; i++ {
		_, fault := handler(context.Background(), req)
		require.Nilf(t, fault, "request %d should pass", i)
	}

	_, fault := handler(context.Background(), req)
	require.NotNil(t, fault)
	require.Equal(t, "rate limit exceeded", fault.Message)
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(), TimeOutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	req := &rpc.Request{Method: "Arith.Add"}
	resp, fault := handler(context.Background(), req)

	require.Nil(t, fault)
	require.NotNil(t, resp)
}
