package reactor

import (
	"sync"
	"time"
)

// Event is what a Selector publishes for one armed Watch call: either
// the bytes read (possibly a short read) or, failing that, a timeout
// or a read error.
type Event struct {
	Data    []byte
	Err     error
	Timeout bool
}

// Selector is spec.md §4.7's non-blocking readiness registry,
// redesigned per spec.md §9's note on "cooperative async via
// callbacks" — rather than a single shared select/epoll loop (Go's
// netpoller already multiplexes file descriptors inside the runtime),
// it owns a registry of watched StreamBuffers and, per Watch call, a
// deadline-aware goroutine pair (the StreamBuffer's own read goroutine
// racing a Timer) that publishes exactly one Event on the
// registration's Signal.
type Selector struct {
	mu   sync.Mutex
	regs map[Handle]*selectorReg
	next Handle
}

type selectorReg struct {
	sb    *StreamBuffer
	ready Signal[Event]
}

// NewSelector returns an empty Selector.
func NewSelector() *Selector {
	return &Selector{regs: make(map[Handle]*selectorReg)}
}

// Register adds sb to the selector and returns a handle identifying it
// plus the Signal that every subsequent Watch(h, ...) call publishes
// on. sb must not have a read already in flight.
func (s *Selector) Register(sb *StreamBuffer) (Handle, *Signal[Event]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	reg := &selectorReg{sb: sb}
	s.regs[h] = reg
	return h, &reg.ready
}

// Unregister stops tracking h. A Watch already in flight still
// completes (the underlying read cannot be cancelled, only raced
// against a timer) but its Event is no longer useful to look up.
func (s *Selector) Unregister(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.regs, h)
}

// Watch arms one read of up to len(buf) bytes on the StreamBuffer
// registered as h, bounded by timeout (WaitInfinite disables the
// bound). Exactly one Event fires on h's Signal: the bytes read (or a
// read error), or Timeout=true if the deadline elapses first. Per
// spec.md §4.7, only one outstanding read may be armed per
// registration at a time — call Watch again only after the previous
// call's Event has fired.
func (s *Selector) Watch(h Handle, buf []byte, timeout Timespan) {
	s.mu.Lock()
	reg, ok := s.regs[h]
	s.mu.Unlock()
	if !ok {
		return
	}

	var fired sync.Once
	var inHandle Handle
	inHandle = reg.sb.InputReady.Connect(func(data []byte) {
		fired.Do(func() {
			reg.sb.InputReady.Disconnect(inHandle)
			reg.ready.Emit(Event{Data: data, Err: reg.sb.EndRead()})
		})
	})

	if timeout == WaitInfinite {
		reg.sb.BeginRead(buf)
		return
	}

	timer := NewTimer()
	timer.Timeout.Connect(func(time.Time) {
		fired.Do(func() {
			reg.sb.InputReady.Disconnect(inHandle)
			reg.ready.Emit(Event{Timeout: true})
		})
	})
	timer.StartOnce(time.Now().Add(timeout))
	reg.sb.BeginRead(buf)
}
