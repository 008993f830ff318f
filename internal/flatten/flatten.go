// Package flatten turns a nested interval tree into the flat, ordered step
// sequence a session executes. Flattening is a pure function: it never
// mutates its input and has no side effects.
package flatten

import (
	"fmt"

	"github.com/meltforce/repflow/pkg/schema"
)

// Flatten expands the interval tree into executable steps: repeat groups
// become rounds, reps nodes with set counts become per-set steps, and every
// step carries its trailing-rest metadata.
//
// The final step is always normalized to HasRestAfter == false; a workout
// never ends on a rest boundary.
func Flatten(intervals []schema.Interval) []schema.FlattenedStep {
	f := &flattener{}
	f.walk(intervals, "")
	if n := len(f.steps); n > 0 {
		f.steps[n-1].HasRestAfter = false
		f.steps[n-1].RestAfterSeconds = nil
	}
	return f.steps
}

type flattener struct {
	index int
	steps []schema.FlattenedStep
}

// walk traverses depth-first, threading the current round label through
// recursive calls. Nested repeats replace the label, so the innermost round
// context wins.
func (f *flattener) walk(intervals []schema.Interval, roundInfo string) {
	for _, iv := range intervals {
		switch iv.Kind {
		case schema.IntervalRepeat:
			f.walkRepeat(iv, roundInfo)
		case schema.IntervalReps:
			f.expandReps(iv, setCount(iv), roundInfo, false)
		default:
			f.emitLeaf(iv, roundInfo)
		}
	}
}

// walkRepeat expands a round group. A repeat wrapping exactly one reps node
// is sets-style: it collapses into per-set steps labeled "Set i of N"
// instead of double-nesting rounds around a single exercise.
func (f *flattener) walkRepeat(iv schema.Interval, roundInfo string) {
	count := 1
	if iv.Count != nil && *iv.Count > 0 {
		count = *iv.Count
	}
	if len(iv.Children) == 1 && iv.Children[0].Kind == schema.IntervalReps {
		f.expandReps(iv.Children[0], count, roundInfo, true)
		return
	}
	for i := 1; i <= count; i++ {
		f.walk(iv.Children, fmt.Sprintf("Round %d of %d", i, count))
	}
}

// expandReps emits one step per set. setsLabel selects the sets-style round
// label ("Set i of N") used when a repeat collapsed into this expansion.
func (f *flattener) expandReps(iv schema.Interval, total int, roundInfo string, setsLabel bool) {
	for i := 1; i <= total; i++ {
		set := i
		totalSets := total
		step := schema.FlattenedStep{
			Index:          f.nextIndex(),
			Label:          iv.Name,
			Details:        repsDetails(iv),
			RoundInfo:      roundInfo,
			Type:           schema.StepReps,
			TargetReps:     iv.Reps,
			SetNumber:      &set,
			TotalSets:      &totalSets,
			FollowAlongURL: iv.FollowAlongURL,
		}
		if setsLabel {
			step.RoundInfo = fmt.Sprintf("Set %d of %d", i, total)
		}
		if i < total && !zeroRest(iv.RestSec) {
			step.HasRestAfter = true
			step.RestAfterSeconds = iv.RestSec
		}
		f.steps = append(f.steps, step)
	}
}

func (f *flattener) emitLeaf(iv schema.Interval, roundInfo string) {
	step := schema.FlattenedStep{
		Index:     f.nextIndex(),
		RoundInfo: roundInfo,
	}
	switch iv.Kind {
	case schema.IntervalWarmup:
		step.Label = "Warm Up"
		step.Type = schema.StepTimed
		step.TimerSeconds = iv.Seconds
		step.Details = timedDetails(iv)
		f.applyRestAfter(&step, iv)
	case schema.IntervalCooldown:
		// A cooldown terminates the workout; it never carries trailing rest.
		step.Label = "Cool Down"
		step.Type = schema.StepTimed
		step.TimerSeconds = iv.Seconds
		step.Details = timedDetails(iv)
	case schema.IntervalTime:
		step.Label = "Work"
		step.Type = schema.StepTimed
		step.TimerSeconds = iv.Seconds
		step.Details = timedDetails(iv)
		f.applyRestAfter(&step, iv)
	case schema.IntervalDistance:
		// Distance steps never auto-advance.
		step.Label = "Distance"
		step.Type = schema.StepDistance
		step.Details = distanceDetails(iv)
		f.applyRestAfter(&step, iv)
	case schema.IntervalRest:
		// An explicit rest step is its own rest; nothing trails it.
		step.Label = "Rest"
		step.Type = schema.StepRest
		step.TimerSeconds = iv.Seconds
		if iv.Seconds != nil {
			step.Details = formatSeconds(*iv.Seconds)
		} else {
			step.Details = "Until ready"
		}
	}
	f.steps = append(f.steps, step)
}

// applyRestAfter marks a leaf's trailing rest: manual by default, timed when
// the node carries its own rest duration, none when that duration is zero.
func (f *flattener) applyRestAfter(step *schema.FlattenedStep, iv schema.Interval) {
	if zeroRest(iv.RestSec) {
		return
	}
	step.HasRestAfter = true
	step.RestAfterSeconds = iv.RestSec
}

func (f *flattener) nextIndex() int {
	f.index++
	return f.index
}

func setCount(iv schema.Interval) int {
	if iv.Sets == nil || *iv.Sets < 1 {
		return 1
	}
	return *iv.Sets
}

func zeroRest(restSec *int) bool {
	return restSec != nil && *restSec == 0
}

func repsDetails(iv schema.Interval) string {
	reps := 0
	if iv.Reps != nil {
		reps = *iv.Reps
	}
	if iv.Load != "" {
		return fmt.Sprintf("%d reps @ %s", reps, iv.Load)
	}
	return fmt.Sprintf("%d reps", reps)
}

func timedDetails(iv schema.Interval) string {
	secs := 0
	if iv.Seconds != nil {
		secs = *iv.Seconds
	}
	if iv.Target != "" {
		return fmt.Sprintf("%s @ %s", formatSeconds(secs), iv.Target)
	}
	return formatSeconds(secs)
}

func distanceDetails(iv schema.Interval) string {
	meters := 0
	if iv.Meters != nil {
		meters = *iv.Meters
	}
	if iv.Target != "" {
		return fmt.Sprintf("%d m @ %s", meters, iv.Target)
	}
	return fmt.Sprintf("%d m", meters)
}

func formatSeconds(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
