package test

import (
	"testing"
	"time"

	"github.com/polyrpc/polyrpc/client"
	"github.com/polyrpc/polyrpc/loadbalance"
	"github.com/polyrpc/polyrpc/registry"
	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/rpcserver"
)

func setupServerAndClient(b *testing.B, addr string, proto rpc.Protocol) (*rpcserver.Server, *client.Client) {
	svr := rpcserver.NewServer(rpcserver.Config{Address: addr, Protocol: proto})
	if err := svr.Register(&Arith{}); err != nil {
		b.Fatal(err)
	}
	if err := svr.Start(nil); err != nil {
		b.Fatal(err)
	}

	reg := registry.NewMockRegistry()
	reg.Register("Arith", registry.ServiceInstance{Addr: svr.ListenAddr()}, 10)

	bal := &loadbalance.RoundRobinBalancer{}
	cli := client.NewClient(reg, bal, proto, 8)

	return svr, cli
}

// BenchmarkSerialCall measures single-goroutine, serial round trips
// over the JSON-RPC wire protocol.
func BenchmarkSerialCall(b *testing.B) {
	svr, cli := setupServerAndClient(b, "127.0.0.1:0", rpc.JSONRPC)
	b.Cleanup(func() { svr.Stop(3 * time.Second); cli.Close() })

	args := &Args{A: 1, B: 2}
	reply := &Reply{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := cli.Call("Arith.Add", args, reply); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkConcurrentCall measures throughput when many goroutines
// share the client's pooled connections concurrently.
func BenchmarkConcurrentCall(b *testing.B) {
	svr, cli := setupServerAndClient(b, "127.0.0.1:0", rpc.JSONRPC)
	b.Cleanup(func() { svr.Stop(3 * time.Second); cli.Close() })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		args := &Args{A: 1, B: 2}
		reply := &Reply{}
		for pb.Next() {
			if err := cli.Call("Arith.Add", args, reply); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkBinRPCSerialCall measures the same serial workload over the
// compact binary protocol, for comparison against JSON-RPC's overhead.
func BenchmarkBinRPCSerialCall(b *testing.B) {
	svr, cli := setupServerAndClient(b, "127.0.0.1:0", rpc.BinRPC)
	b.Cleanup(func() { svr.Stop(3 * time.Second); cli.Close() })

	args := &Args{A: 1, B: 2}
	reply := &Reply{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := cli.Call("Arith.Add", args, reply); err != nil {
			b.Fatal(err)
		}
	}
}
