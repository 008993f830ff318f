package clock

import (
	"context"
	"time"
)

// Handle identifies a scheduled repeating timer. Stop is idempotent. At most
// one already-started tick may still be delivered after Stop returns;
// consumers that need strict cancel-before-reseed serialize ticks behind
// their own lock and discard stale deliveries.
type Handle interface {
	Stop()
}

// Clock abstracts "now" and elapsed-time scheduling so a session can run in
// real time or in accelerated virtual time under one contract.
//
// Each clock carries at most one active repeating timer: scheduling a new
// one invalidates the prior. Clock operations cannot fail; cancelling a nil
// or already-stopped handle is a no-op.
type Clock interface {
	// Now returns the current (possibly virtual) time.
	Now() time.Time

	// ScheduleRepeating invokes fn once per interval of virtual time until
	// the returned handle is stopped.
	ScheduleRepeating(interval time.Duration, fn func()) Handle

	// Cancel stops the given handle. No-op for nil handles.
	Cancel(h Handle)

	// Sleep suspends the calling goroutine until d of virtual time has
	// elapsed, or ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}
