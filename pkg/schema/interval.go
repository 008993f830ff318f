package schema

// IntervalKind enumerates the kinds of interval nodes in a workout.
type IntervalKind string

const (
	IntervalWarmup   IntervalKind = "warmup"
	IntervalCooldown IntervalKind = "cooldown"
	IntervalTime     IntervalKind = "time"
	IntervalReps     IntervalKind = "reps"
	IntervalDistance IntervalKind = "distance"
	IntervalRest     IntervalKind = "rest"
	IntervalRepeat   IntervalKind = "repeat"
)

// Interval is one node in a workout description tree. It is a closed tagged
// union discriminated by Kind; only the fields for that kind are meaningful.
// Values are immutable once a workout is loaded.
//
// RestSec semantics for reps nodes: nil = manual rest (wait for an explicit
// continue), 0 = no rest, >0 = timed countdown rest.
type Interval struct {
	Kind IntervalKind `json:"kind"`

	// warmup, cooldown, time: duration. rest: nil = manual rest.
	Seconds *int `json:"seconds,omitempty"`

	// distance
	Meters *int `json:"meters,omitempty"`

	// warmup, cooldown, time, distance: optional target (pace, HR zone, ...).
	Target string `json:"target,omitempty"`

	// reps
	Sets           *int   `json:"sets,omitempty"` // nil = 1
	Reps           *int   `json:"reps,omitempty"`
	Name           string `json:"name,omitempty"`
	Load           string `json:"load,omitempty"`
	RestSec        *int   `json:"restSec,omitempty"`
	FollowAlongURL string `json:"followAlongUrl,omitempty"`

	// repeat
	Count    *int       `json:"count,omitempty"`
	Children []Interval `json:"children,omitempty"`
}

// Workout is the JSON-serializable workout description consumed by the engine.
type Workout struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Intervals []Interval `json:"intervals"`
}

// Constructors keep test and template code readable; they mirror the
// discriminated JSON shapes one to one.

// Warmup returns a warmup interval of the given duration.
func Warmup(seconds int, target string) Interval {
	return Interval{Kind: IntervalWarmup, Seconds: &seconds, Target: target}
}

// Cooldown returns a cooldown interval of the given duration.
func Cooldown(seconds int, target string) Interval {
	return Interval{Kind: IntervalCooldown, Seconds: &seconds, Target: target}
}

// Timed returns a plain timed interval.
func Timed(seconds int, target string) Interval {
	return Interval{Kind: IntervalTime, Seconds: &seconds, Target: target}
}

// Distance returns a distance interval; distance steps never auto-advance.
func Distance(meters int, target string) Interval {
	return Interval{Kind: IntervalDistance, Meters: &meters, Target: target}
}

// RepsOpt carries the optional fields of a reps interval.
type RepsOpt struct {
	Sets           *int
	Load           string
	RestSec        *int
	FollowAlongURL string
}

// Reps returns a rep-based interval.
func Reps(name string, reps int, opt RepsOpt) Interval {
	return Interval{
		Kind:           IntervalReps,
		Name:           name,
		Reps:           &reps,
		Sets:           opt.Sets,
		Load:           opt.Load,
		RestSec:        opt.RestSec,
		FollowAlongURL: opt.FollowAlongURL,
	}
}

// Rest returns an explicit rest interval; nil seconds means manual rest.
func Rest(seconds *int) Interval {
	return Interval{Kind: IntervalRest, Seconds: seconds}
}

// Repeat returns a round group flattened count times.
func Repeat(count int, children ...Interval) Interval {
	return Interval{Kind: IntervalRepeat, Count: &count, Children: children}
}

// IntPtr returns a pointer to v; convenience for optional interval fields.
func IntPtr(v int) *int { return &v }

// Validate checks the construction-time invariants of the interval tree:
// count >= 1 for repeat, sets >= 1 when present, durations >= 0.
func (iv Interval) Validate() error {
	switch iv.Kind {
	case IntervalWarmup, IntervalCooldown, IntervalTime:
		if iv.Seconds == nil {
			return NewErrorf(ErrCodeValidation, "%s interval requires seconds", iv.Kind)
		}
		if *iv.Seconds < 0 {
			return NewErrorf(ErrCodeValidation, "%s interval has negative seconds: %d", iv.Kind, *iv.Seconds)
		}
	case IntervalDistance:
		if iv.Meters == nil || *iv.Meters <= 0 {
			return NewError(ErrCodeValidation, "distance interval requires positive meters")
		}
	case IntervalReps:
		if iv.Reps == nil || *iv.Reps < 1 {
			return NewError(ErrCodeValidation, "reps interval requires reps >= 1")
		}
		if iv.Sets != nil && *iv.Sets < 1 {
			return NewErrorf(ErrCodeValidation, "reps interval has sets < 1: %d", *iv.Sets)
		}
		if iv.RestSec != nil && *iv.RestSec < 0 {
			return NewErrorf(ErrCodeValidation, "reps interval has negative restSec: %d", *iv.RestSec)
		}
	case IntervalRest:
		if iv.Seconds != nil && *iv.Seconds < 0 {
			return NewErrorf(ErrCodeValidation, "rest interval has negative seconds: %d", *iv.Seconds)
		}
	case IntervalRepeat:
		if iv.Count == nil || *iv.Count < 1 {
			return NewError(ErrCodeValidation, "repeat interval requires count >= 1")
		}
		for _, child := range iv.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	default:
		return NewErrorf(ErrCodeValidation, "unknown interval kind: %q", iv.Kind)
	}
	return nil
}

// Validate checks every interval in the workout.
func (w *Workout) Validate() error {
	for _, iv := range w.Intervals {
		if err := iv.Validate(); err != nil {
			return err
		}
	}
	return nil
}
