package remote

import (
	"sync"

	"github.com/meltforce/repflow/pkg/schema"
)

// SnapshotTracker is the remote-observer side of the ordering contract:
// snapshots whose version is not greater than the last applied one are
// discarded (tolerating out-of-order transport delivery), and acks are
// deduplicated by command id so redelivery is an idempotent no-op.
type SnapshotTracker struct {
	mu          sync.Mutex
	lastVersion uint64
	latest      *schema.StateSnapshot
	seenAcks    map[string]schema.CommandAck
}

// NewSnapshotTracker creates an empty tracker.
func NewSnapshotTracker() *SnapshotTracker {
	return &SnapshotTracker{
		seenAcks: make(map[string]schema.CommandAck),
	}
}

// ApplySnapshot applies snap if it is newer than the last applied snapshot.
// Returns false for stale or duplicate versions.
func (t *SnapshotTracker) ApplySnapshot(snap *schema.StateSnapshot) bool {
	if snap == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest != nil && snap.StateVersion <= t.lastVersion {
		return false
	}
	t.lastVersion = snap.StateVersion
	cp := *snap
	t.latest = &cp
	return true
}

// ApplyAck records an ack; returns false if this command id was already
// acknowledged (duplicate delivery).
func (t *SnapshotTracker) ApplyAck(ack schema.CommandAck) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seenAcks[ack.CommandID]; ok {
		return false
	}
	t.seenAcks[ack.CommandID] = ack
	return true
}

// Latest returns a copy of the most recently applied snapshot, or nil.
func (t *SnapshotTracker) Latest() *schema.StateSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return nil
	}
	cp := *t.latest
	return &cp
}

// Acked reports whether the given command id has been acknowledged.
func (t *SnapshotTracker) Acked(commandID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seenAcks[commandID]
	return ok
}
