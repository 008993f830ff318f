package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/repflow/pkg/schema"
)

func recvOne(t *testing.T, ch <-chan StreamEvent) StreamEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return StreamEvent{}
	}
}

func TestMemoryHub_PublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	snap := &schema.StateSnapshot{StateVersion: 1, Phase: schema.PhaseRunning}
	require.NoError(t, hub.Publish(ctx, StreamEvent{
		SessionID: "s-1",
		EventType: EventSnapshot,
		Snapshot:  snap,
	}))

	e := recvOne(t, ch)
	assert.Equal(t, "s-1", e.SessionID)
	assert.Equal(t, EventSnapshot, e.EventType)
	require.NotNil(t, e.Snapshot)
	assert.Equal(t, uint64(1), e.Snapshot.StateVersion)
}

func TestMemoryHub_FilterBySessionID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{SessionID: "s-1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-2", EventType: EventSnapshot}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventSnapshot}))

	e := recvOne(t, ch)
	assert.Equal(t, "s-1", e.SessionID)
	assert.Empty(t, ch)
}

func TestMemoryHub_FilterByEventType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{EventTypes: []string{EventCommandAck}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventSnapshot}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{
		SessionID: "s-1",
		EventType: EventCommandAck,
		Ack:       &schema.CommandAck{CommandID: "c-1", Status: schema.AckSuccess},
	}))

	e := recvOne(t, ch)
	assert.Equal(t, EventCommandAck, e.EventType)
	require.NotNil(t, e.Ack)
	assert.Equal(t, "c-1", e.Ack.CommandID)
}

func TestMemoryHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Overfill the subscriber buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultChannelBuffer*2; i++ {
			_ = hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventSnapshot})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, defaultChannelBuffer)
}

func TestMemoryHub_CancelRemovesSubscriber(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s-1", EventType: EventSnapshot}))
	assert.Empty(t, ch)
}

func TestMemoryHub_CancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.Error(t, err)
	assert.Error(t, hub.Publish(ctx, StreamEvent{}))
}
