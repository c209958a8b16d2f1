package rpc

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polyrpc/polyrpc/reactor"
	"github.com/polyrpc/polyrpc/rpcerr"
	"github.com/polyrpc/polyrpc/si"
)

// RemoteClient is one connection to one server, speaking one wire
// protocol, per spec.md §4.1/§4.10. A RemoteClient serializes its own
// calls (one request in flight at a time) — concurrency across calls is
// obtained the way the teacher's client package gets it today, by
// pooling multiple RemoteClients per address (see package client),
// not by multiplexing one connection's byte stream.
type RemoteClient struct {
	conn     net.Conn
	stream   *reactor.StreamBuffer
	wire     Conn
	protocol Protocol

	mu       sync.Mutex
	nextID   int64
	closed   atomic.Bool
}

// NewRemoteClient wraps an already-dialed connection. Like Responder on
// the serving side, the protocol's Conn is built over a StreamBuffer
// rather than conn directly, so both ends of spec.md §4.10's dispatcher
// read and write through the same codec.ByteSource/ByteSink contract
// (spec.md §4.7).
func NewRemoteClient(conn net.Conn, protocol Protocol) *RemoteClient {
	sb := reactor.NewStreamBuffer(&reactor.IODevice{Conn: conn})
	return &RemoteClient{
		conn:     conn,
		stream:   sb,
		wire:     protocol.NewConn(sb),
		protocol: protocol,
	}
}

// SetTimeout bounds every subsequent read and write on the connection,
// mirroring the per-phase deadlines Responder applies on the serving
// side.
func (c *RemoteClient) SetTimeout(d time.Duration) { c.stream.SetTimeout(d) }

// Close aborts any in-flight call by closing the underlying socket; the
// pending Call (sync or async) observes rpcerr.ErrConnectionClosed.
func (c *RemoteClient) Close() error {
	c.closed.Store(true)
	return c.conn.Close()
}

// Call performs one synchronous request/reply round trip and returns
// the raw result tree (or an error derived from a fault reply).
func (c *RemoteClient) Call(method string, args []*si.Info) (*si.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, rpcerr.ErrConnectionClosed
	}

	id := atomic.AddInt64(&c.nextID, 1)
	if err := c.wire.WriteRequest(id, method, args); err != nil {
		return nil, &rpcerr.IOError{Op: "write request", Err: err}
	}

	for {
		_, resp, fault, err := c.wire.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return nil, rpcerr.ErrConnectionClosed
			}
			return nil, &rpcerr.IOError{Op: "read reply", Err: err}
		}
		if fault != nil {
			if fault.ID != 0 && fault.ID != id {
				continue // stale reply from a previous pipelined call
			}
			return nil, &rpcerr.InvocationError{Code: fault.Code, Message: fault.Message}
		}
		if resp.ID != 0 && resp.ID != id {
			continue
		}
		return resp.Result, nil
	}
}

// RemoteProcedure is a typed client-side proxy bound to one method name
// on one RemoteClient, the Go-generics stand-in for spec.md's
// `RemoteProcedure<R, Args...>` template (spec.md §4.1, §4.10). R is
// the reply type; the single Args struct per call matches the teacher's
// own `func(args *Args, reply *Reply) error` service convention on the
// server side.
type RemoteProcedure[R any] struct {
	client *RemoteClient
	method string
}

// NewRemoteProcedure binds a typed proxy to client for method, e.g.
// "Arith.Add". It is non-copyable in spirit (bound to exactly one
// client) though Go cannot enforce that statically.
func NewRemoteProcedure[R any](client *RemoteClient, method string) *RemoteProcedure[R] {
	return &RemoteProcedure[R]{client: client, method: method}
}

// Call is the synchronous invocation path.
func (p *RemoteProcedure[R]) Call(args any) (R, error) {
	var zero R
	argInfo, err := ValueToSI(args)
	if err != nil {
		return zero, fmt.Errorf("rpc: encoding args for %s: %w", p.method, err)
	}
	result, err := p.client.Call(p.method, []*si.Info{argInfo})
	if err != nil {
		return zero, err
	}
	var out R
	if err := SIToValue(result, &out); err != nil {
		return zero, fmt.Errorf("rpc: decoding result of %s: %w", p.method, err)
	}
	return out, nil
}

// AsyncCall carries the outcome of a Begin invocation. Done receives
// the same *AsyncCall once Value/Err are set, mirroring spec.md's
// `finished` signal.
type AsyncCall[R any] struct {
	Value R
	Err   error
	Done  chan *AsyncCall[R]
}

// Begin is the asynchronous invocation path: it returns immediately and
// signals completion on the returned call's Done channel. Cancel the
// call by closing the bound RemoteClient; the pending read then fails
// with rpcerr.ErrConnectionClosed, which Done still delivers exactly
// once (spec.md §8, scenario S6).
func (p *RemoteProcedure[R]) Begin(args any) *AsyncCall[R] {
	call := &AsyncCall[R]{Done: make(chan *AsyncCall[R], 1)}
	go func() {
		call.Value, call.Err = p.Call(args)
		call.Done <- call
	}()
	return call
}
