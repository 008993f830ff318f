// Package input supplies the human decision points of a session: advancing
// non-timed steps, entering completed reps, and finishing manual rests. The
// engine's timer-driven transitions never depend on a provider; a provider
// only decides when a gesture-driven transition happens.
package input

import "context"

// Provider is the contract for human (or simulated) decision points.
type Provider interface {
	// WaitForAdvance suspends until the user advances a non-timed step.
	WaitForAdvance(ctx context.Context) error

	// WaitForRepsEntry suspends until the user records how many reps they
	// actually completed against the target.
	WaitForRepsEntry(ctx context.Context, target int) (int, error)

	// WaitForReadyAfterRest suspends until the user continues out of a
	// manual rest.
	WaitForReadyAfterRest(ctx context.Context) error

	// ShouldInjectPause reports whether a pause should be injected at the
	// current decision point (always false for real input).
	ShouldInjectPause() bool

	// ShouldInjectSkip reports whether a skip should be injected at the
	// current decision point (always false for real input).
	ShouldInjectSkip() bool
}
