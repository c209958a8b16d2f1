package reactor

import (
	"net"
	"time"

	"github.com/polyrpc/polyrpc/rpcerr"
)

// IODevice is spec.md §4.7's split non-blocking I/O contract: BeginRead
// kicks off a read that completes asynchronously (observed via
// inputReady on the owning StreamBuffer), and the synchronous Read
// helper blocks up to Timeout before raising rpcerr.ErrIOTimeout.
// Built over net.Conn's deadline-based API — Go's netpoller already
// does the non-blocking multiplexing spec.md's C++ source hand-rolls
// with select/epoll (spec.md §9).
type IODevice struct {
	Conn    net.Conn
	Timeout time.Duration
}

// Read performs one blocking read bounded by d.Timeout (or no deadline
// when Timeout is zero). A timeout surfaces as rpcerr.ErrIOTimeout
// instead of the raw net.Error, matching spec.md §4.7's "synchronous
// read/write block with the configured timeout and raise IOTimeout on
// expiry."
func (d *IODevice) Read(p []byte) (int, error) {
	if d.Timeout > 0 {
		_ = d.Conn.SetReadDeadline(time.Now().Add(d.Timeout))
		defer d.Conn.SetReadDeadline(time.Time{})
	}
	n, err := d.Conn.Read(p)
	return n, wrapTimeout(err)
}

// Write performs one blocking write bounded by d.Timeout.
func (d *IODevice) Write(p []byte) (int, error) {
	if d.Timeout > 0 {
		_ = d.Conn.SetWriteDeadline(time.Now().Add(d.Timeout))
		defer d.Conn.SetWriteDeadline(time.Time{})
	}
	n, err := d.Conn.Write(p)
	return n, wrapTimeout(err)
}

func wrapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return rpcerr.ErrIOTimeout
	}
	return err
}

// StreamBuffer is an async buffer over an IODevice: BeginRead requests
// a fill and reports completion on InputReady; BeginWrite queues bytes
// and reports completion on OutputReady once flushed. Exactly one
// outstanding read and one outstanding write may be in flight at a
// time, per spec.md §4.7 — a second BeginRead before the first
// completes panics, since that indicates a bug in the caller's state
// machine, not a recoverable runtime condition.
//
// StreamBuffer also satisfies io.Reader/io.Writer directly (Read/Write
// below), so it can stand in anywhere a connection's codec.ByteSink/
// ByteSource is needed — package rpc's Responder and RemoteClient wrap
// their net.Conn in exactly one IODevice+StreamBuffer pair and hand the
// StreamBuffer to the protocol's Conn instead of the raw socket.
type StreamBuffer struct {
	dev *IODevice

	InputReady  Signal[[]byte]
	OutputReady Signal[int]

	readInFlight  bool
	writeInFlight bool
	lastReadErr   error
	lastWriteErr  error

	// pending holds bytes consumed out-of-band (e.g. by a Selector
	// probing readiness) that a subsequent Read must return before
	// touching the device again.
	pending []byte
}

// NewStreamBuffer wraps dev.
func NewStreamBuffer(dev *IODevice) *StreamBuffer {
	return &StreamBuffer{dev: dev}
}

// BeginRead requests up to len(buf) bytes. InputReady fires exactly
// once with the slice actually filled (possibly shorter) once the read
// completes or fails; a failed read fires InputReady with a nil slice
// and the caller should consult EndRead for the error.
func (b *StreamBuffer) BeginRead(buf []byte) {
	if b.readInFlight {
		panic("reactor: BeginRead called with a read already in flight")
	}
	b.readInFlight = true
	go func() {
		n, err := b.dev.Read(buf)
		b.readInFlight = false
		b.lastReadErr = err
		if err != nil {
			b.InputReady.Emit(nil)
			return
		}
		b.InputReady.Emit(buf[:n])
	}()
}

// EndRead returns the error from the most recently completed read.
func (b *StreamBuffer) EndRead() error { return b.lastReadErr }

// BeginWrite queues buf for writing. OutputReady fires once with the
// byte count written (and EndWrite reports any error).
func (b *StreamBuffer) BeginWrite(buf []byte) {
	if b.writeInFlight {
		panic("reactor: BeginWrite called with a write already in flight")
	}
	b.writeInFlight = true
	go func() {
		n, err := b.dev.Write(buf)
		b.writeInFlight = false
		b.lastWriteErr = err
		b.OutputReady.Emit(n)
	}()
}

// EndWrite returns the error from the most recently completed write.
func (b *StreamBuffer) EndWrite() error { return b.lastWriteErr }

// SetTimeout updates the timeout applied to subsequent reads and
// writes, both the async BeginRead/BeginWrite pair and the synchronous
// Read/Write wrappers below. Responder and RemoteClient call this
// between dispatcher phases the same way spec.md's source rearms a
// per-phase deadline (idle/read/write timeouts, spec.md §4.10).
func (b *StreamBuffer) SetTimeout(d time.Duration) { b.dev.Timeout = d }

// Prime pushes data to the front of the buffer's unread input, so
// bytes consumed out-of-band (by a Selector's readiness probe, before
// the buffer's normal caller ever saw them) are not lost to the next
// Read call.
func (b *StreamBuffer) Prime(data []byte) {
	if len(data) == 0 {
		return
	}
	b.pending = append(b.pending, data...)
}

// Read is the synchronous counterpart of BeginRead/InputReady: it
// arms one read and blocks until that same InputReady fires, letting
// StreamBuffer satisfy io.Reader for callers (package rpc's bufio-based
// message readers) that want the blocking view of the same primitive
// the async API exposes. Any bytes queued by Prime are returned first,
// without touching the device.
func (b *StreamBuffer) Read(p []byte) (int, error) {
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}

	done := make(chan struct{})
	var n int
	h := b.InputReady.Connect(func(data []byte) {
		n = len(data)
		close(done)
	})
	b.BeginRead(p)
	<-done
	b.InputReady.Disconnect(h)
	return n, b.EndRead()
}

// Write is the synchronous counterpart of BeginWrite/OutputReady,
// mirroring Read.
func (b *StreamBuffer) Write(p []byte) (int, error) {
	done := make(chan struct{})
	var n int
	h := b.OutputReady.Connect(func(written int) {
		n = written
		close(done)
	})
	b.BeginWrite(p)
	<-done
	b.OutputReady.Disconnect(h)
	return n, b.EndWrite()
}
