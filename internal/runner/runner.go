// Package runner drives a started session to completion using an input
// provider for every human decision point. Timer-driven transitions stay
// with the engine; the runner only supplies gestures (reps entry, manual
// rest continues, advances) and the sim profile's injected pause/skip.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/meltforce/repflow/internal/clock"
	"github.com/meltforce/repflow/internal/engine"
	"github.com/meltforce/repflow/internal/input"
	"github.com/meltforce/repflow/pkg/schema"
)

// pauseHold is how long an injected pause lasts before the runner resumes.
const pauseHold = 5 * time.Second

// poll is the idle wait between state checks while a timer is driving.
const poll = time.Second

// Runner advances one session through its gesture-driven decision points.
type Runner struct {
	eng      *engine.Engine
	provider input.Provider
	clk      clock.Clock
	logger   *slog.Logger
}

// New creates a Runner. The clock should be the same instance the engine
// uses so simulated delays share its virtual time.
func New(eng *engine.Engine, provider input.Provider, clk clock.Clock, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{eng: eng, provider: provider, clk: clk, logger: logger}
}

// Run drives the session until it ends or ctx is cancelled. The session
// must already be started; an idle engine returns immediately.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap := r.eng.Snapshot()
		switch snap.Phase {
		case schema.PhaseEnded, schema.PhaseIdle:
			return nil

		case schema.PhasePaused:
			// Paused externally (remote command); wait it out.
			if err := r.clk.Sleep(ctx, poll); err != nil {
				return err
			}

		case schema.PhaseResting:
			if err := r.rest(ctx, snap); err != nil {
				return err
			}

		case schema.PhaseRunning:
			if err := r.step(ctx, snap); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) rest(ctx context.Context, snap schema.StateSnapshot) error {
	if snap.IsManualRest {
		if err := r.provider.WaitForReadyAfterRest(ctx); err != nil {
			return err
		}
		r.eng.SkipRest()
		return nil
	}
	if r.provider.ShouldInjectSkip() {
		r.eng.SkipRest()
		return nil
	}
	// Timed rest counts itself down.
	return r.clk.Sleep(ctx, poll)
}

func (r *Runner) step(ctx context.Context, snap schema.StateSnapshot) error {
	step := r.eng.CurrentStep()
	if step == nil {
		// Empty workout: nothing to drive.
		r.eng.End(schema.EndUserEnded)
		return nil
	}

	if r.provider.ShouldInjectPause() {
		r.eng.Pause()
		if err := r.clk.Sleep(ctx, pauseHold); err != nil {
			return err
		}
		r.eng.Resume()
		return nil
	}

	switch step.Type {
	case schema.StepReps:
		target := 0
		if step.TargetReps != nil {
			target = *step.TargetReps
		}
		completed, err := r.provider.WaitForRepsEntry(ctx, target)
		if err != nil {
			return err
		}
		r.logger.Debug("reps entered",
			slog.Int("step", step.Index),
			slog.Int("target", target),
			slog.Int("completed", completed))
		r.eng.NextStep()

	case schema.StepDistance:
		if err := r.provider.WaitForAdvance(ctx); err != nil {
			return err
		}
		r.eng.NextStep()

	case schema.StepRest:
		// Explicit rest step: manual ones wait on the athlete, timed ones
		// count down on the engine timer.
		if step.Timed() {
			return r.clk.Sleep(ctx, poll)
		}
		if err := r.provider.WaitForReadyAfterRest(ctx); err != nil {
			return err
		}
		r.eng.NextStep()

	case schema.StepTimed:
		if snap.RemainingMs != nil && *snap.RemainingMs <= 0 {
			// Zero-duration timed step never ticks; advance it.
			r.eng.NextStep()
			return nil
		}
		return r.clk.Sleep(ctx, poll)
	}
	return nil
}
