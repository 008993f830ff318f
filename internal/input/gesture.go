package input

import (
	"context"
	"sync"

	"github.com/meltforce/repflow/pkg/schema"
)

// ErrReset is returned from pending waits when the provider is reset.
var ErrReset = schema.NewError(schema.ErrCodeExecution, "input provider reset")

// GestureProvider is the real-input implementation: each Wait* call
// suspends until the matching UI event resolves it. A wait is completed
// exactly once; resolving with no wait pending is dropped, and Reset fails
// all pending waits so none leak across sessions.
type GestureProvider struct {
	mu      sync.Mutex
	advance chan struct{}
	reps    chan int
	ready   chan struct{}
	reset   chan struct{}
}

// NewGestureProvider creates a GestureProvider with no pending waits.
func NewGestureProvider() *GestureProvider {
	return &GestureProvider{reset: make(chan struct{})}
}

// WaitForAdvance suspends until Advance is called.
func (p *GestureProvider) WaitForAdvance(ctx context.Context) error {
	p.mu.Lock()
	if p.advance == nil {
		p.advance = make(chan struct{}, 1)
	}
	ch := p.advance
	reset := p.reset
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-reset:
		return ErrReset
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForRepsEntry suspends until EnterReps is called. Negative counts
// clamp to zero.
func (p *GestureProvider) WaitForRepsEntry(ctx context.Context, target int) (int, error) {
	p.mu.Lock()
	if p.reps == nil {
		p.reps = make(chan int, 1)
	}
	ch := p.reps
	reset := p.reset
	p.mu.Unlock()

	select {
	case n := <-ch:
		if n < 0 {
			n = 0
		}
		return n, nil
	case <-reset:
		return 0, ErrReset
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WaitForReadyAfterRest suspends until Ready is called.
func (p *GestureProvider) WaitForReadyAfterRest(ctx context.Context) error {
	p.mu.Lock()
	if p.ready == nil {
		p.ready = make(chan struct{}, 1)
	}
	ch := p.ready
	reset := p.reset
	p.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-reset:
		return ErrReset
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldInjectPause always reports false for real input.
func (p *GestureProvider) ShouldInjectPause() bool { return false }

// ShouldInjectSkip always reports false for real input.
func (p *GestureProvider) ShouldInjectSkip() bool { return false }

// Advance resolves a pending advance wait. Dropped if none is pending or
// one resolution is already buffered (double-completion guard).
func (p *GestureProvider) Advance() {
	p.mu.Lock()
	ch := p.advance
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// EnterReps resolves a pending reps wait with the completed count.
func (p *GestureProvider) EnterReps(completed int) {
	p.mu.Lock()
	ch := p.reps
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- completed:
	default:
	}
}

// Ready resolves a pending manual-rest wait.
func (p *GestureProvider) Ready() {
	p.mu.Lock()
	ch := p.ready
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Reset fails every pending wait with ErrReset and discards any buffered
// resolutions, so a new session starts with clean gates.
func (p *GestureProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.reset)
	p.reset = make(chan struct{})
	p.advance = nil
	p.reps = nil
	p.ready = nil
}
