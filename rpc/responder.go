package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/polyrpc/polyrpc/internal/logging"
	"github.com/polyrpc/polyrpc/reactor"
	"github.com/polyrpc/polyrpc/rpcerr"
)

// Handler dispatches one decoded Request to a Response or a Fault. Its
// shape matches package middleware's HandlerFunc so a middleware.Chain
// result can be plugged in as Responder.Handler without rpc importing
// middleware (middleware imports rpc, not the reverse).
type Handler func(ctx context.Context, req *Request) (*Response, *Fault)

var log = logging.Get("rpc")

// State is the per-connection dispatcher state, spec.md §4.10.
type State int

const (
	StateIdle State = iota
	StateReading
	StateDispatching
	StateWriting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Responder drives one connection's request/reply cycle for exactly
// one wire protocol, per spec.md §4.10. Serve runs the dispatcher state
// machine until the connection closes, a timeout fires, or a protocol
// error terminates the stream; it never spawns a goroutine per
// request, which is what keeps replies in arrival order on a pipelined
// keep-alive connection (spec.md §5).
type Responder struct {
	Conn     net.Conn
	Protocol Protocol
	Registry *ServiceRegistry

	// Stream, when set, is the StreamBuffer the worker pool already
	// built around Conn (e.g. rpcserver's Selector probed the
	// connection for its first byte before handing it off). Serve hands
	// this to Protocol.NewConn instead of Conn directly, so the
	// codec.ByteSource/ByteSink the wire format reads and writes is
	// always a StreamBuffer, per spec.md §4.7/§4.10. Nil means build
	// one from Conn.
	Stream *reactor.StreamBuffer

	// Handler, when set, replaces the default Registry.Dispatch call —
	// this is where a middleware.Chain(...) result is plugged in. Nil
	// means dispatch straight to the registry with no middleware.
	Handler Handler

	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	KeepAliveTimeout time.Duration

	state State
}

func (r *Responder) dispatch(req *Request) (*Response, *Fault) {
	if r.Handler != nil {
		return r.Handler(context.Background(), req)
	}
	result, err := r.Registry.Dispatch(req.Method, req.Args)
	if err != nil {
		code, msg := faultFromError(err)
		return nil, &Fault{ID: req.ID, Code: code, Message: msg}
	}
	return &Response{ID: req.ID, Result: result}, nil
}

// State reports the responder's current dispatcher state (for tests
// and diagnostics; not synchronized, as Serve owns the only writer).
func (r *Responder) State() State { return r.state }

// Serve runs until the connection is closed. It is meant to be called
// on a worker-pool goroutine per spec.md §4.11: a worker is released
// from the pool to drive exactly one connection, synchronously, until
// that connection goes idle with nothing left to read or goes away.
func (r *Responder) Serve() {
	defer r.Conn.Close()

	sb := r.Stream
	if sb == nil {
		sb = reactor.NewStreamBuffer(&reactor.IODevice{Conn: r.Conn})
	}
	wireConn := r.Protocol.NewConn(sb)

	for {
		r.state = StateIdle
		idleDeadline := r.KeepAliveTimeout
		if idleDeadline <= 0 {
			idleDeadline = 60 * time.Second
		}
		sb.SetTimeout(idleDeadline)

		r.state = StateReading
		if r.ReadTimeout > 0 {
			sb.SetTimeout(r.ReadTimeout)
		}
		req, _, _, err := wireConn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				log.Debugf("%s: %v, closing idle connection", r.Protocol.Name(), err)
			}
			return
		}
		if req == nil {
			// A reply or fault arrived on a server-bound connection;
			// not a request this responder can act on. Treat as a
			// protocol error and close per spec.md §7.
			return
		}

		r.state = StateDispatching
		resp, fault := r.dispatch(req)

		r.state = StateWriting
		if r.WriteTimeout > 0 {
			sb.SetTimeout(r.WriteTimeout)
		}
		if fault != nil {
			if werr := wireConn.WriteFault(fault.ID, fault.Code, fault.Message); werr != nil {
				return
			}
			continue
		}
		if werr := wireConn.WriteResponse(resp.ID, resp.Result); werr != nil {
			return
		}
	}
}

func faultFromError(err error) (int64, string) {
	if errors.Is(err, rpcerr.ErrMethodNotFound) {
		return rpcerr.CodeMethodNotFound, err.Error()
	}
	ie := rpcerr.NewInvocationError(err)
	return ie.Code, ie.Message
}

func isTimeout(err error) bool {
	if errors.Is(err, rpcerr.ErrIOTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
