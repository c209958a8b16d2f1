// Package reactor implements the event-driven core of spec.md §4.7,
// redesigned per spec.md §9 ("cooperative async via callbacks" →
// "express each connection as a state machine... no re-entrancy beyond
// one level"): Go's net package already multiplexes file descriptors
// inside the runtime's netpoller, so a literal epoll/kqueue
// reimplementation would be unidiomatic. This package keeps the
// *contracts* spec.md describes — readiness signals, timers bounded by
// a Timespan, a StreamBuffer with one outstanding read/write per
// direction — and implements them with goroutines, channels, and
// net.Conn deadlines instead of raw select/epoll.
package reactor

import (
	"sync"
	"time"
)

// Timespan is spec.md's resolution-agnostic duration type. It is an
// alias of time.Duration, so its unit is the nanosecond.
type Timespan = time.Duration

// WaitInfinite is the sentinel spec.md names for "no timeout."
const WaitInfinite Timespan = -1

// Timer fires its Signal on a monotonic deadline. Periodic timers
// reschedule themselves only after the previous firing's handler
// returns, so a slow handler never compounds (spec.md §4.7); starting
// one against an absolute deadline already in the past fires
// immediately exactly once, then keeps firing aligned to the original
// absolute schedule rather than to "now + period" each time.
type Timer struct {
	Timeout Signal[time.Time]

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewTimer returns an unstarted Timer.
func NewTimer() *Timer { return &Timer{} }

// StartOnce arms the timer to fire once at deadline (in the past or
// future — a past deadline fires on the next scheduler tick).
func (t *Timer) StartOnce(deadline time.Time) { t.run(deadline, 0) }

// StartPeriodic arms the timer to first fire at deadline and then at
// deadline plus whole multiples of period. The next firing is scheduled
// after the handler returns, and slots that have already passed by then
// are skipped, so a handler that runs long does not cause a burst of
// catch-up firings.
func (t *Timer) StartPeriodic(deadline time.Time, period time.Duration) {
	t.run(deadline, period)
}

func (t *Timer) run(deadline time.Time, period time.Duration) {
	t.mu.Lock()
	if t.stopCh != nil {
		close(t.stopCh)
	}
	stop := make(chan struct{})
	t.stopCh = stop
	t.mu.Unlock()

	go func() {
		for {
			d := time.Until(deadline)
			if d < 0 {
				d = 0
			}
			timer := time.NewTimer(d)
			select {
			case now := <-timer.C:
				t.Timeout.Emit(now)
				if period <= 0 {
					return
				}
				deadline = deadline.Add(period)
				if n := time.Now(); deadline.Before(n) {
					deadline = deadline.Add((n.Sub(deadline)/period + 1) * period)
				}
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()
}

// Stop cancels any pending firing. Safe to call on an already-stopped
// or never-started Timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopCh != nil {
		select {
		case <-t.stopCh:
		default:
			close(t.stopCh)
		}
	}
}
