package schema

// StepType classifies an executable step for display and timer handling.
type StepType string

const (
	StepTimed    StepType = "timed"
	StepReps     StepType = "reps"
	StepDistance StepType = "distance"
	StepRest     StepType = "rest"
)

// FlattenedStep is one executable unit in the linear sequence a session
// progresses through, derived from the interval tree. Produced once on
// session start and never mutated afterwards.
//
// RestAfterSeconds semantics mirror Interval.RestSec: nil = manual rest,
// >0 = timed countdown. A step with HasRestAfter == false has no trailing
// rest boundary regardless of RestAfterSeconds.
type FlattenedStep struct {
	Index            int      `json:"index"` // 1-based, global
	Label            string   `json:"label"`
	Details          string   `json:"details,omitempty"`
	RoundInfo        string   `json:"round_info,omitempty"` // "Round i of N" / "Set i of N"
	TimerSeconds     *int     `json:"timer_seconds,omitempty"`
	Type             StepType `json:"type"`
	TargetReps       *int     `json:"target_reps,omitempty"`
	SetNumber        *int     `json:"set_number,omitempty"`
	TotalSets        *int     `json:"total_sets,omitempty"`
	FollowAlongURL   string   `json:"follow_along_url,omitempty"`
	HasRestAfter     bool     `json:"has_rest_after"`
	RestAfterSeconds *int     `json:"rest_after_seconds,omitempty"`
}

// Timed reports whether the step runs on a countdown timer.
func (s *FlattenedStep) Timed() bool {
	return s.TimerSeconds != nil
}
