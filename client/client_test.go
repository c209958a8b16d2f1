package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polyrpc/polyrpc/loadbalance"
	"github.com/polyrpc/polyrpc/registry"
	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/rpcserver"
)

type Args struct {
	A, B int
}

type Reply struct {
	Result int
}

type Arith struct{}

func (a *Arith) Add(args *Args, reply *Reply) error {
	reply.Result = args.A + args.B
	return nil
}

func startTestServer(t *testing.T, addr string) *rpcserver.Server {
	t.Helper()
	svr := rpcserver.NewServer(rpcserver.Config{
		Address:  addr,
		Protocol: rpc.JSONRPC,
	})
	require.NoError(t, svr.Register(&Arith{}))
	require.NoError(t, svr.Start(nil))
	t.Cleanup(func() { svr.Stop(time.Second) })
	return svr
}

func TestClientWithRegistryAndLB(t *testing.T) {
	startTestServer(t, "127.0.0.1:18080")
	time.Sleep(50 * time.Millisecond)

	reg := registry.NewMockRegistry()
	require.NoError(t, reg.Register("Arith", registry.ServiceInstance{Addr: "127.0.0.1:18080", Weight: 1}, 10))

	bal := &loadbalance.RoundRobinBalancer{}
	cl := NewClient(reg, bal, rpc.JSONRPC, 4)
	t.Cleanup(func() { cl.Close() })

	reply := &Reply{}
	require.NoError(t, cl.Call("Arith.Add", &Args{A: 1, B: 2}, reply))
	require.Equal(t, 3, reply.Result)

	reply2 := &Reply{}
	require.NoError(t, cl.Call("Arith.Add", &Args{A: 10, B: 20}, reply2))
	require.Equal(t, 30, reply2.Result)
}

func TestClientMultipleInstances(t *testing.T) {
	startTestServer(t, "127.0.0.1:18081")
	startTestServer(t, "127.0.0.1:18082")
	time.Sleep(50 * time.Millisecond)

	reg := registry.NewMockRegistry()
	require.NoError(t, reg.Register("Arith", registry.ServiceInstance{Addr: "127.0.0.1:18081", Weight: 1}, 10))
	require.NoError(t, reg.Register("Arith", registry.ServiceInstance{Addr: "127.0.0.1:18082", Weight: 1}, 10))

	bal := &loadbalance.RoundRobinBalancer{}
	cl := NewClient(reg, bal, rpc.JSONRPC, 4)
	t.Cleanup(func() { cl.Close() })

	for i := 0; i < 10; i++ {
		reply := &Reply{}
		require.NoError(t, cl.Call("Arith.Add", &Args{A: i, B: i}, reply))
		require.Equal(t, i*2, reply.Result)
	}
}
