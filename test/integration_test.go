package test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polyrpc/polyrpc/client"
	"github.com/polyrpc/polyrpc/loadbalance"
	"github.com/polyrpc/polyrpc/middleware"
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

func (a *Arith) Multiply(args *Args, reply *Reply) error {
	reply.Result = args.A * args.B
	return nil
}

// TestFullIntegration exercises the full call chain end-to-end over all
// three wire protocols: Client → Registry → LB → connection pool →
// Protocol → Responder → middleware → reflective dispatch.
//
// This uses registry.MockRegistry instead of etcd, since the etcd-backed
// path (registry.EtcdRegistry, exercised by registry/etcd_registry_test.go)
// needs a live cluster and isn't a fit for an always-on unit test.
func TestFullIntegration(t *testing.T) {
	for _, proto := range []rpc.Protocol{rpc.JSONRPC, rpc.BinRPC, rpc.XMLRPC} {
		t.Run(proto.Name(), func(t *testing.T) {
			addr := "127.0.0.1:0"
			svr := rpcserver.NewServer(rpcserver.Config{
				Address:  addr,
				Protocol: proto,
			})
			svr.Use(middleware.LoggingMiddleware())
			require.NoError(t, svr.Register(&Arith{}))
			require.NoError(t, svr.Start(nil))
			t.Cleanup(func() { svr.Stop(3 * time.Second) })

			boundAddr := svr.ListenAddr()

			reg := registry.NewMockRegistry()
			require.NoError(t, reg.Register("Arith", registry.ServiceInstance{
				Addr:   boundAddr,
				Weight: 10,
			}, 10))

			bal := &loadbalance.RoundRobinBalancer{}
			cli := client.NewClient(reg, bal, proto, 2)
			t.Cleanup(func() { cli.Close() })

			reply := &Reply{}
			require.NoError(t, cli.Call("Arith.Add", &Args{A: 3, B: 5}, reply))
			require.Equal(t, 8, reply.Result)

			reply2 := &Reply{}
			require.NoError(t, cli.Call("Arith.Multiply", &Args{A: 4, B: 6}, reply2))
			require.Equal(t, 24, reply2.Result)
		})
	}
}

// TestMultiServer runs ten calls through a round-robin balancer over two
// independently registered instances and checks every result.
func TestMultiServer(t *testing.T) {
	svr1 := rpcserver.NewServer(rpcserver.Config{Address: "127.0.0.1:0", Protocol: rpc.JSONRPC})
	require.NoError(t, svr1.Register(&Arith{}))
	require.NoError(t, svr1.Start(nil))
	t.Cleanup(func() { svr1.Stop(3 * time.Second) })

	svr2 := rpcserver.NewServer(rpcserver.Config{Address: "127.0.0.1:0", Protocol: rpc.JSONRPC})
	require.NoError(t, svr2.Register(&Arith{}))
	require.NoError(t, svr2.Start(nil))
	t.Cleanup(func() { svr2.Stop(3 * time.Second) })

	reg := registry.NewMockRegistry()
	require.NoError(t, reg.Register("Arith", registry.ServiceInstance{Addr: svr1.ListenAddr(), Weight: 10}, 10))
	require.NoError(t, reg.Register("Arith", registry.ServiceInstance{Addr: svr2.ListenAddr(), Weight: 10}, 10))

	bal := &loadbalance.RoundRobinBalancer{}
	cli := client.NewClient(reg, bal, rpc.JSONRPC, 2)
	t.Cleanup(func() { cli.Close() })

	for i := 1; i <= 10; i++ {
		reply := &Reply{}
		require.NoError(t, cli.Call("Arith.Add", &Args{A: i, B: i * 10}, reply))
		require.Equal(t, i+i*10, reply.Result)
	}
}
