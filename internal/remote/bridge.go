package remote

import (
	"context"
	"sync"

	"github.com/meltforce/repflow/pkg/schema"
)

const defaultQueueSize = 32

// CommandHandler is the engine-side contract the bridge delivers into.
// Satisfied by engine.Engine (interface here to avoid an import cycle).
type CommandHandler interface {
	HandleRemoteCommand(command, commandID string) schema.CommandAck
}

// Bridge serializes inbound remote commands onto a single delivery
// goroutine, so commands arriving while a transition is in flight are
// queued and applied strictly in the order received.
type Bridge struct {
	handler CommandHandler

	mu     sync.Mutex
	queue  chan submission
	cancel context.CancelFunc
	done   chan struct{}
}

type submission struct {
	command   string
	commandID string
}

// NewBridge creates a Bridge delivering into the given handler.
func NewBridge(handler CommandHandler) *Bridge {
	return &Bridge{
		handler: handler,
		queue:   make(chan submission, defaultQueueSize),
	}
}

// Start launches the delivery loop. Returns an error if already started.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		return schema.NewError(schema.ErrCodeConflict, "bridge already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		for {
			select {
			case <-loopCtx.Done():
				return
			case sub := <-b.queue:
				b.handler.HandleRemoteCommand(sub.command, sub.commandID)
			}
		}
	}()
	return nil
}

// Submit enqueues a command for ordered delivery. Non-blocking: returns an
// error when the queue is full rather than stalling the transport.
func (b *Bridge) Submit(command, commandID string) error {
	select {
	case b.queue <- submission{command: command, commandID: commandID}:
		return nil
	default:
		return schema.NewErrorf(schema.ErrCodeConflict, "command queue full, dropped %q", command)
	}
}

// Stop halts the delivery loop and waits for it to exit. Queued but
// undelivered commands are discarded.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
