// Package client implements the RPC calling side: service discovery,
// load balancing, and a shared connection pool per discovered address,
// built on rpc.RemoteClient instead of the teacher's bespoke
// transport.ClientTransport (which multiplexed one TCP stream by
// request sequence number — a framing only the teacher's own
// protocol.Header supported). xmlrpc, binrpc, and jsonrpc carry no
// stream-level multiplexing of their own, so Client instead keeps a
// small pool of RemoteClients per address and round-robins across it,
// same as the teacher's "shared, not borrowed" transport pool design.
//
// Call flow:
//
//	Call("Arith.Add", args, reply)
//	  → Registry.Discover("Arith")   → get instance list from etcd
//	  → Balancer.Pick(instances)      → select one address
//	  → getConn(addr)                 → get a shared RemoteClient (round-robin)
//	  → RemoteClient.Call()           → send request, block for response
//	  → SIToValue → reply             → done
package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/polyrpc/polyrpc/loadbalance"
	"github.com/polyrpc/polyrpc/nettransport"
	"github.com/polyrpc/polyrpc/registry"
	"github.com/polyrpc/polyrpc/rpc"
	"github.com/polyrpc/polyrpc/si"
)

// Client manages the full RPC call lifecycle: service discovery → load
// balancing → connection pool → call.
type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	protocol rpc.Protocol
	ssl      *nettransport.SslCtx

	mu       sync.Mutex
	conns    map[string][]*rpc.RemoteClient
	poolSize int
	counter  uint64
}

// NewClient creates a client with the given registry, load balancer,
// wire protocol, and pool size.
//
// poolSize determines how many TCP connections are maintained per
// server address. Since none of the three wire protocols pipeline
// replies out of order across a single stream from the client's point
// of view, each pooled connection serves one call at a time — a larger
// pool raises achievable concurrency to one server, at the cost of one
// socket each.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, protocol rpc.Protocol, poolSize int) *Client {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Client{
		registry: reg,
		balancer: bal,
		protocol: protocol,
		conns:    make(map[string][]*rpc.RemoteClient),
		poolSize: poolSize,
	}
}

// WithSSL arms the client to dial with the given TLS context.
func (c *Client) WithSSL(ssl *nettransport.SslCtx) *Client {
	c.ssl = ssl
	return c
}

// getConn returns a shared RemoteClient for addr, selected round-robin
// from a lazily created pool.
func (c *Client) getConn(addr string) (*rpc.RemoteClient, error) {
	n := atomic.AddUint64(&c.counter, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.conns[addr]
	if !ok {
		pool = make([]*rpc.RemoteClient, c.poolSize)
		c.conns[addr] = pool
		for i := 0; i < c.poolSize; i++ {
			conn, err := nettransport.DialTCP(context.Background(), addr, c.ssl)
			if err != nil {
				return nil, err
			}
			pool[i] = rpc.NewRemoteClient(conn, c.protocol)
		}
	}

	return pool[n%uint64(c.poolSize)], nil
}

// Call performs a synchronous RPC call: parse "Service.Method",
// discover instances, pick one, get a pooled connection, send args and
// wait for the reply, decode it into reply.
func (c *Client) Call(serviceMethod string, args any, reply any) error {
	split := strings.SplitN(serviceMethod, ".", 2)
	if len(split) != 2 {
		return fmt.Errorf("client: invalid serviceMethod format: %v", serviceMethod)
	}
	serviceName := split[0]

	instances, err := c.registry.Discover(serviceName)
	if err != nil {
		return err
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return err
	}

	conn, err := c.getConn(instance.Addr)
	if err != nil {
		return err
	}

	argInfo, err := rpc.ValueToSI(args)
	if err != nil {
		return fmt.Errorf("client: encoding args for %s: %w", serviceMethod, err)
	}

	result, err := conn.Call(serviceMethod, []*si.Info{argInfo})
	if err != nil {
		return err
	}
	return rpc.SIToValue(result, reply)
}

// Close tears down every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for _, pool := range c.conns {
		for _, conn := range pool {
			if conn == nil {
				continue
			}
			if err := conn.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
