package clock

import (
	"context"
	"sync"
	"time"
)

// RealClock is the wall-clock implementation of Clock.
type RealClock struct {
	mu     sync.Mutex
	active *tickerHandle
}

// NewRealClock creates a Clock backed by wall-clock time.
func NewRealClock() *RealClock {
	return &RealClock{}
}

// Now returns the current wall-clock time in UTC.
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// ScheduleRepeating starts a repeating timer firing fn every interval.
// Any previously scheduled timer on this clock is stopped first.
func (c *RealClock) ScheduleRepeating(interval time.Duration, fn func()) Handle {
	h := newTickerHandle(interval, fn, nil)

	c.mu.Lock()
	prev := c.active
	c.active = h
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	h.start()
	return h
}

// Cancel stops the given handle. No-op for nil handles.
func (c *RealClock) Cancel(h Handle) {
	if h == nil {
		return
	}
	h.Stop()
}

// Sleep suspends until d has elapsed or ctx is done.
func (c *RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tickerHandle drives a repeating callback off a time.Ticker. The stopped
// flag is checked under mu before each fire; the callback itself runs
// outside the lock so Stop never blocks behind a consumer's own mutex.
type tickerHandle struct {
	interval time.Duration
	fn       func()
	onTick   func() // optional, runs before fn under mu (virtual time advance)

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func newTickerHandle(interval time.Duration, fn, onTick func()) *tickerHandle {
	return &tickerHandle{
		interval: interval,
		fn:       fn,
		onTick:   onTick,
		done:     make(chan struct{}),
	}
}

func (h *tickerHandle) start() {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				if !h.fire() {
					return
				}
			}
		}
	}()
}

// fire runs one tick; returns false once the handle is stopped.
func (h *tickerHandle) fire() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	if h.onTick != nil {
		h.onTick()
	}
	h.mu.Unlock()
	h.fn()
	return true
}

func (h *tickerHandle) Stop() {
	h.mu.Lock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
	h.mu.Unlock()
}
