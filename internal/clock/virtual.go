package clock

import (
	"context"
	"sync"
	"time"
)

// VirtualClock is the accelerated implementation of Clock. Wall-clock waits
// are compressed by the speed multiplier, but virtual time always advances
// in full real-world-equivalent units: a repeating timer scheduled at 60s
// with multiplier 10 fires every 6 wall seconds, and each fire advances
// virtual time by the full 60 seconds.
type VirtualClock struct {
	multiplier float64

	mu     sync.Mutex
	now    time.Time
	active *tickerHandle
}

// NewVirtualClock creates a Clock whose virtual time starts at the current
// wall-clock time and advances multiplier times faster than real time.
// Multipliers below 1.0 clamp to 1.0.
func NewVirtualClock(multiplier float64) *VirtualClock {
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	return &VirtualClock{
		multiplier: multiplier,
		now:        time.Now().UTC(),
	}
}

// Multiplier returns the effective (post-clamp) speed multiplier.
func (c *VirtualClock) Multiplier() float64 {
	return c.multiplier
}

// Now returns the internally tracked virtual timestamp.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ScheduleRepeating starts a repeating timer whose wall-clock period is
// interval divided by the multiplier. Each fire advances virtual time by the
// full interval before invoking fn. Any previously scheduled timer on this
// clock is stopped first.
func (c *VirtualClock) ScheduleRepeating(interval time.Duration, fn func()) Handle {
	wall := time.Duration(float64(interval) / c.multiplier)
	if wall <= 0 {
		wall = time.Nanosecond
	}
	h := newTickerHandle(wall, fn, func() { c.advance(interval) })

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
func (c *VirtualClock) Cancel(h Handle) {
	if h == nil {
		return
	}
	h.Stop()
}

// Sleep suspends for d divided by the multiplier of real time, then advances
// virtual time by the full d. Returns early with ctx.Err() if ctx is done,
// without advancing virtual time.
func (c *VirtualClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	wall := time.Duration(float64(d) / c.multiplier)
	t := time.NewTimer(wall)
	defer t.Stop()
	select {
	case <-t.C:
		c.advance(d)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
