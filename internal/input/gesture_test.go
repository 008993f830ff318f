package input

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGestureProvider_AdvanceResolvesWait(t *testing.T) {
	p := NewGestureProvider()
	done := make(chan error, 1)
	go func() { done <- p.WaitForAdvance(context.Background()) }()

	// Wait registration races with Advance; give the waiter a beat.
	time.Sleep(10 * time.Millisecond)
	p.Advance()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("advance did not resolve the wait")
	}
}

func TestGestureProvider_RepsEntry(t *testing.T) {
	p := NewGestureProvider()
	done := make(chan int, 1)
	go func() {
		n, err := p.WaitForRepsEntry(context.Background(), 10)
		require.NoError(t, err)
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	p.EnterReps(8)

	select {
	case n := <-done:
		assert.Equal(t, 8, n)
	case <-time.After(time.Second):
		t.Fatal("reps entry did not resolve the wait")
	}
}

func TestGestureProvider_NegativeRepsClampToZero(t *testing.T) {
	p := NewGestureProvider()
	done := make(chan int, 1)
	go func() {
		n, err := p.WaitForRepsEntry(context.Background(), 10)
		require.NoError(t, err)
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	p.EnterReps(-3)

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(time.Second):
		t.Fatal("reps entry did not resolve the wait")
	}
}

func TestGestureProvider_ResolveWithNoWaitPendingIsDropped(t *testing.T) {
	p := NewGestureProvider()
	// No wait registered yet: these must not panic or leave stale state.
	p.Advance()
	p.EnterReps(5)
	p.Ready()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// Nothing buffered, so the wait times out instead of resolving instantly.
	err := p.WaitForAdvance(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGestureProvider_DoubleCompletionBuffersOnce(t *testing.T) {
	p := NewGestureProvider()

	// Register the gate, then complete twice before anyone waits again.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_ = p.WaitForAdvance(ctx)
	cancel()

	p.Advance()
	p.Advance()
	p.Advance()

	// Exactly one buffered resolution.
	require.NoError(t, p.WaitForAdvance(context.Background()))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, p.WaitForAdvance(ctx2), context.DeadlineExceeded)
}

func TestGestureProvider_ResetFailsPendingWaits(t *testing.T) {
	p := NewGestureProvider()

	advErr := make(chan error, 1)
	repsErr := make(chan error, 1)
	readyErr := make(chan error, 1)
	go func() { advErr <- p.WaitForAdvance(context.Background()) }()
	go func() {
		_, err := p.WaitForRepsEntry(context.Background(), 5)
		repsErr <- err
	}()
	go func() { readyErr <- p.WaitForReadyAfterRest(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	p.Reset()

	for name, ch := range map[string]chan error{"advance": advErr, "reps": repsErr, "ready": readyErr} {
		select {
		case err := <-ch:
			assert.ErrorIs(t, err, ErrReset, "%s wait", name)
		case <-time.After(time.Second):
			t.Fatalf("%s wait not failed by reset", name)
		}
	}
}

func TestGestureProvider_UsableAfterReset(t *testing.T) {
	p := NewGestureProvider()
	p.Reset()

	done := make(chan error, 1)
	go func() { done <- p.WaitForReadyAfterRest(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	p.Ready()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait after reset did not resolve")
	}
}

func TestGestureProvider_NeverInjects(t *testing.T) {
	p := NewGestureProvider()
	assert.False(t, p.ShouldInjectPause())
	assert.False(t, p.ShouldInjectSkip())
}

func TestGestureProvider_ContextCancellation(t *testing.T) {
	p := NewGestureProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.WaitForAdvance(ctx), context.Canceled)
}
