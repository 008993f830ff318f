package remote

import (
	"context"

	"github.com/meltforce/repflow/pkg/schema"
)

// Built-in event types carried by the hub alongside the named lifecycle
// events in pkg/schema.
const (
	EventSnapshot   = "snapshot"
	EventCommandAck = "command_ack"
)

// StreamEvent is a real-time message emitted during a workout session:
// a versioned state snapshot, a command acknowledgment, or a named
// lifecycle event.
type StreamEvent struct {
	SessionID string                `json:"session_id"`
	EventType string                `json:"event_type"`
	Snapshot  *schema.StateSnapshot `json:"snapshot,omitempty"`
	Ack       *schema.CommandAck    `json:"ack,omitempty"`
	Payload   any                   `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	SessionID  string   `json:"session_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// Hub provides pub/sub for real-time session events. Delivery is best
// effort: the transport may drop or reorder, which is why snapshots carry a
// state version and acks carry a command id.
type Hub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
