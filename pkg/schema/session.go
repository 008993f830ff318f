package schema

import "time"

// Phase represents the lifecycle state of a workout session.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseResting Phase = "resting"
	PhaseEnded   Phase = "ended"
)

// EndReason records why a session ended.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndUserEnded EndReason = "userEnded"
	EndError     EndReason = "error"
)

// Remote command tokens accepted from a companion controller.
const (
	CommandPause    = "PAUSE"
	CommandResume   = "RESUME"
	CommandNextStep = "NEXT_STEP"
	CommandPrevStep = "PREV_STEP"
	CommandSkipRest = "SKIP_REST"
	CommandEnd      = "END"
)

// Event type constants for the session event stream.
const (
	EventSessionStarted = "session_started"
	EventSessionPaused  = "session_paused"
	EventSessionResumed = "session_resumed"
	EventStepAdvanced   = "step_advanced"
	EventRestStarted    = "rest_started"
	EventRestSkipped    = "rest_skipped"
	EventRestCompleted  = "rest_completed"
	EventSessionEnded   = "session_ended"
)

// AckStatus reports the outcome of a remote command.
type AckStatus string

const (
	AckSuccess AckStatus = "success"
	AckError   AckStatus = "error"
)

// CommandAck correlates a remote command with the state snapshot it caused.
// Duplicate acks for the same CommandID are idempotent no-ops on the remote.
type CommandAck struct {
	CommandID string    `json:"command_id"`
	Status    AckStatus `json:"status"`
	ErrorCode string    `json:"error_code,omitempty"`
}

// StateSnapshot is the versioned session state broadcast to remote observers.
// A remote must discard any snapshot whose StateVersion is not greater than
// the last one it applied.
type StateSnapshot struct {
	StateVersion   uint64      `json:"state_version"`
	WorkoutID      string      `json:"workout_id"`
	WorkoutName    string      `json:"workout_name"`
	Phase          Phase       `json:"phase"`
	StepIndex      int         `json:"step_index"` // 0-based position in the flattened sequence
	StepCount      int         `json:"step_count"`
	StepName       string      `json:"step_name,omitempty"`
	StepType       StepType    `json:"step_type,omitempty"`
	RemainingMs    *int64      `json:"remaining_ms,omitempty"`
	RoundInfo      string      `json:"round_info,omitempty"`
	TargetReps     *int        `json:"target_reps,omitempty"`
	SetNumber      *int        `json:"set_number,omitempty"`
	TotalSets      *int        `json:"total_sets,omitempty"`
	IsManualRest   bool        `json:"is_manual_rest,omitempty"`
	LastCommandAck *CommandAck `json:"last_command_ack,omitempty"`
}

// HealthAggregates are session-level health metrics contributed by an
// external health-sampling collaborator; the engine never computes them.
type HealthAggregates struct {
	AvgHeartRate   *float64 `json:"avg_heart_rate,omitempty"`
	MaxHeartRate   *float64 `json:"max_heart_rate,omitempty"`
	ActiveCalories *float64 `json:"active_calories,omitempty"`
}

// CompletionSummary is emitted to the completion sink when a session ends.
type CompletionSummary struct {
	SessionID      string           `json:"session_id"`
	WorkoutID      string           `json:"workout_id"`
	WorkoutName    string           `json:"workout_name"`
	Reason         EndReason        `json:"reason"`
	StartedAt      time.Time        `json:"started_at"`
	EndedAt        time.Time        `json:"ended_at"`
	ElapsedSeconds int              `json:"elapsed_seconds"`
	CompletedSteps int              `json:"completed_steps"`
	TotalSteps     int              `json:"total_steps"`
	Health         HealthAggregates `json:"health"`
}

// SessionProgress is the crash-safe resume record persisted by the progress
// store while a session is live.
type SessionProgress struct {
	SessionID      string    `json:"session_id"`
	WorkoutID      string    `json:"workout_id"`
	WorkoutName    string    `json:"workout_name"`
	StepIndex      int       `json:"step_index"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	SavedAt        time.Time `json:"saved_at"`
}
