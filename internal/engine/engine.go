// Package engine drives a workout session: a finite-state machine over
// {idle, running, paused, resting, ended} that owns the flattened step
// pointer, the per-second timers, and the monotonic state version used for
// remote sync. All transitions, timer callbacks, and remote commands are
// serialized behind one mutex; the engine never raises errors for expected
// edge cases (boundary navigation, inapplicable commands), which degrade to
// no-ops so a live session is never torn down by a bad input.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/repflow/internal/clock"
	"github.com/meltforce/repflow/internal/flatten"
	"github.com/meltforce/repflow/internal/remote"
	"github.com/meltforce/repflow/pkg/schema"
)

// restCueWindow is how many final seconds of a timed rest fire countdown cues.
const restCueWindow = 3

// ValidTransitions defines the allowed phase transitions for a session.
var ValidTransitions = map[schema.Phase][]schema.Phase{
	schema.PhaseIdle:    {schema.PhaseRunning},
	schema.PhaseRunning: {schema.PhasePaused, schema.PhaseResting, schema.PhaseEnded, schema.PhaseRunning},
	schema.PhasePaused:  {schema.PhaseRunning, schema.PhaseEnded},
	schema.PhaseResting: {schema.PhaseRunning, schema.PhaseEnded},
	schema.PhaseEnded:   {schema.PhaseIdle, schema.PhaseRunning},
}

// CanTransition reports whether from -> to is an allowed phase transition.
func CanTransition(from, to schema.Phase) bool {
	for _, a := range ValidTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// CompletionSink receives the completion summary when a session ends.
type CompletionSink interface {
	Complete(ctx context.Context, summary *schema.CompletionSummary) error
}

// HealthProvider contributes health aggregates to the completion summary.
// The engine never computes these itself.
type HealthProvider interface {
	Aggregates(ctx context.Context) schema.HealthAggregates
}

// Cuer receives haptic/alert cues during the final seconds of a timed rest.
type Cuer interface {
	RestCountdown(secondsLeft int)
}

// ProgressStore persists crash-safe resume state for the live session.
type ProgressStore interface {
	SaveProgress(ctx context.Context, p *schema.SessionProgress) error
	ClearProgress(ctx context.Context) error
}

type noopSink struct{}

func (noopSink) Complete(context.Context, *schema.CompletionSummary) error { return nil }

type noopHealth struct{}

func (noopHealth) Aggregates(context.Context) schema.HealthAggregates {
	return schema.HealthAggregates{}
}

type noopCuer struct{}

func (noopCuer) RestCountdown(int) {}

type noopProgress struct{}

func (noopProgress) SaveProgress(context.Context, *schema.SessionProgress) error { return nil }
func (noopProgress) ClearProgress(context.Context) error                         { return nil }

// Deps are the injected collaborators of an Engine. Nil fields get no-op
// defaults; a nil Clock gets a real-time clock and a nil Hub an in-memory
// hub, so an Engine is usable with zero configuration in tests.
type Deps struct {
	Clock    clock.Clock
	Hub      remote.Hub
	Sink     CompletionSink
	Health   HealthProvider
	Cuer     Cuer
	Progress ProgressStore
	Logger   *slog.Logger
}

// Engine executes one workout session at a time. It is an explicit object
// with injected dependencies rather than process-global state; multiple
// engines can run isolated sessions side by side.
type Engine struct {
	clk      clock.Clock
	hub      remote.Hub
	sink     CompletionSink
	health   HealthProvider
	cuer     Cuer
	progress ProgressStore
	logger   *slog.Logger

	mu sync.Mutex

	sessionID   string
	workoutID   string
	workoutName string
	steps       []schema.FlattenedStep
	phase       schema.Phase
	current     int // 0-based index into steps
	remaining   int // seconds left on the current timed step
	restRem     int // seconds left on a timed rest
	manualRest  bool
	elapsed     int // monotonic for the session, one per timer tick
	startedAt   time.Time
	version     uint64
	lastAck     *schema.CommandAck
	acks        map[string]schema.CommandAck

	timer    clock.Handle
	timerGen uint64
}

// New creates an Engine with the given collaborators.
func New(deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.NewRealClock()
	}
	if deps.Hub == nil {
		deps.Hub = remote.NewMemoryHub()
	}
	if deps.Sink == nil {
		deps.Sink = noopSink{}
	}
	if deps.Health == nil {
		deps.Health = noopHealth{}
	}
	if deps.Cuer == nil {
		deps.Cuer = noopCuer{}
	}
	if deps.Progress == nil {
		deps.Progress = noopProgress{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{
		clk:      deps.Clock,
		hub:      deps.Hub,
		sink:     deps.Sink,
		health:   deps.Health,
		cuer:     deps.Cuer,
		progress: deps.Progress,
		logger:   deps.Logger,
		phase:    schema.PhaseIdle,
		acks:     make(map[string]schema.CommandAck),
	}
}

// Start begins a new session for the workout, implicitly ending any prior
// active session with reason userEnded. An empty interval list is accepted:
// the session runs with no current step and zero progress.
func (e *Engine) Start(w *schema.Workout) error {
	return e.StartAt(w, 0, 0)
}

// StartAt begins a session at the given flattened step index with the given
// already-elapsed seconds; used to resume a crashed session from the
// progress store. Out-of-range indices clamp to 0.
func (e *Engine) StartAt(w *schema.Workout, stepIndex, elapsedSeconds int) error {
	if w == nil {
		return schema.NewError(schema.ErrCodeValidation, "nil workout")
	}
	if err := w.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessionActiveLocked() {
		e.endLocked(schema.EndUserEnded)
	}

	e.sessionID = uuid.New().String()
	e.workoutID = w.ID
	if e.workoutID == "" {
		e.workoutID = uuid.New().String()
	}
	e.workoutName = w.Name
	e.steps = flatten.Flatten(w.Intervals)
	if stepIndex < 0 || stepIndex >= len(e.steps) {
		stepIndex = 0
	}
	e.current = stepIndex
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	e.elapsed = elapsedSeconds
	e.startedAt = e.clk.Now()
	e.phase = schema.PhaseRunning
	e.lastAck = nil
	e.acks = make(map[string]schema.CommandAck)

	e.seedStepLocked()
	e.bumpLocked(schema.EventSessionStarted)
	e.saveProgressLocked()

	e.logger.Info("session started",
		slog.String("session_id", e.sessionID),
		slog.String("workout", e.workoutName),
		slog.Int("steps", len(e.steps)),
		slog.Int("step_index", e.current))
	return nil
}

// Pause halts the current step timer. Valid only while running; otherwise a
// no-op that does not bump the state version.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

// Resume restarts the timer for the remaining time of the current step.
// Valid only while paused; otherwise a no-op.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumeLocked()
}

// TogglePlayPause dispatches to Pause or Resume based on the current phase.
func (e *Engine) TogglePlayPause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.phase {
	case schema.PhaseRunning:
		e.pauseLocked()
	case schema.PhasePaused:
		e.resumeLocked()
	}
}

// NextStep advances the session. If the current step carries a trailing rest
// and the session is not already resting, it enters the rest phase instead
// of moving the index; on the last step it ends the session with reason
// completed.
func (e *Engine) NextStep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextStepLocked()
}

// PreviousStep moves back one step. No-op at index 0; never replays rest.
func (e *Engine) PreviousStep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previousStepLocked()
}

// SkipToStep jumps directly to the given 0-based index, bypassing
// rest-insertion. No-op for out-of-range indices.
func (e *Engine) SkipToStep(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.steps) {
		return
	}
	if !e.sessionActiveLocked() {
		return
	}
	e.phase = schema.PhaseRunning
	e.current = i
	e.seedStepLocked()
	e.bumpLocked(schema.EventStepAdvanced)
	e.saveProgressLocked()
}

// SkipRest immediately completes an in-progress rest and advances exactly as
// the auto-complete path does. Valid only while resting.
func (e *Engine) SkipRest() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skipRestLocked()
}

// End terminates the session from any active phase, cancels all timers and
// emits the completion summary to the sink.
func (e *Engine) End(reason schema.EndReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endLocked(reason)
}

// Reset clears all state back to idle defaults. Callable from any phase,
// including ended. The state version is engine-lifetime monotonic and is
// not reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessionActiveLocked() {
		e.endLocked(schema.EndUserEnded)
	}
	e.cancelTimerLocked()
	e.sessionID = ""
	e.workoutID = ""
	e.workoutName = ""
	e.steps = nil
	e.current = 0
	e.remaining = 0
	e.restRem = 0
	e.manualRest = false
	e.elapsed = 0
	e.startedAt = time.Time{}
	e.lastAck = nil
	e.acks = make(map[string]schema.CommandAck)
	e.phase = schema.PhaseIdle
	e.bumpLocked("")
	if err := e.progress.ClearProgress(context.Background()); err != nil {
		e.logger.Warn("clear progress failed", slog.String("error", err.Error()))
	}
}

// --- locked transition internals ---

func (e *Engine) sessionActiveLocked() bool {
	switch e.phase {
	case schema.PhaseRunning, schema.PhasePaused, schema.PhaseResting:
		return true
	}
	return false
}

func (e *Engine) currentStepLocked() *schema.FlattenedStep {
	if e.current < 0 || e.current >= len(e.steps) {
		return nil
	}
	return &e.steps[e.current]
}

func (e *Engine) pauseLocked() {
	if e.phase != schema.PhaseRunning {
		return
	}
	e.cancelTimerLocked()
	e.phase = schema.PhasePaused
	e.bumpLocked(schema.EventSessionPaused)
}

func (e *Engine) resumeLocked() {
	if e.phase != schema.PhasePaused {
		return
	}
	e.phase = schema.PhaseRunning
	if step := e.currentStepLocked(); step != nil && step.Timed() && e.remaining > 0 {
		e.scheduleTickLocked()
	}
	e.bumpLocked(schema.EventSessionResumed)
}

func (e *Engine) nextStepLocked() {
	if len(e.steps) == 0 {
		return
	}
	switch e.phase {
	case schema.PhaseResting:
		// Already resting: next acts like rest completion.
		e.completeRestLocked(schema.EventRestSkipped)
	case schema.PhaseRunning:
		step := e.currentStepLocked()
		if step.HasRestAfter {
			e.enterRestLocked(step)
			return
		}
		e.advanceIndexLocked()
	case schema.PhasePaused:
		// Advancing while paused re-seeds the step but stays paused;
		// rest insertion applies only to a running session.
		e.advanceIndexLocked()
	}
}

func (e *Engine) previousStepLocked() {
	if len(e.steps) == 0 || e.current == 0 {
		return
	}
	if !e.sessionActiveLocked() {
		return
	}
	if e.phase == schema.PhaseResting {
		e.phase = schema.PhaseRunning
	}
	e.current--
	e.seedStepLocked()
	e.bumpLocked(schema.EventStepAdvanced)
	e.saveProgressLocked()
}

func (e *Engine) skipRestLocked() {
	if e.phase != schema.PhaseResting {
		return
	}
	e.completeRestLocked(schema.EventRestSkipped)
}

// enterRestLocked transitions into the rest boundary after the current step.
// A nil rest duration is a manual rest: no countdown, the session waits
// indefinitely for an explicit continue.
func (e *Engine) enterRestLocked(step *schema.FlattenedStep) {
	e.cancelTimerLocked()
	e.phase = schema.PhaseResting
	if step.RestAfterSeconds != nil && *step.RestAfterSeconds > 0 {
		e.manualRest = false
		e.restRem = *step.RestAfterSeconds
		e.scheduleTickLocked()
	} else {
		e.manualRest = true
		e.restRem = 0
	}
	e.bumpLocked(schema.EventRestStarted)
}

// completeRestLocked leaves the rest phase and advances to the next step.
// The flattener guarantees the last step never carries rest, so advancing
// here cannot run off the end.
func (e *Engine) completeRestLocked(event string) {
	if e.phase != schema.PhaseResting {
		return
	}
	e.phase = schema.PhaseRunning
	e.restRem = 0
	e.manualRest = false
	if e.current >= len(e.steps)-1 {
		e.endLocked(schema.EndCompleted)
		return
	}
	e.current++
	e.seedStepLocked()
	e.bumpLocked(event)
	e.saveProgressLocked()
}

// advanceIndexLocked moves the step pointer forward, ending the session with
// reason completed when the last step finishes.
func (e *Engine) advanceIndexLocked() {
	if e.current >= len(e.steps)-1 {
		e.endLocked(schema.EndCompleted)
		return
	}
	e.current++
	e.seedStepLocked()
	e.bumpLocked(schema.EventStepAdvanced)
	e.saveProgressLocked()
}

// seedStepLocked resets per-step timer state for the current step,
// cancelling before reseeding so a stale timer can never fire into the new
// step. The timer is only scheduled for timed steps of a running session.
func (e *Engine) seedStepLocked() {
	e.cancelTimerLocked()
	e.restRem = 0
	e.manualRest = false
	e.remaining = 0
	step := e.currentStepLocked()
	if step == nil || !step.Timed() {
		return
	}
	e.remaining = *step.TimerSeconds
	if e.remaining > 0 && e.phase == schema.PhaseRunning {
		e.scheduleTickLocked()
	}
}

func (e *Engine) endLocked(reason schema.EndReason) {
	if !e.sessionActiveLocked() {
		return
	}
	e.cancelTimerLocked()

	completed := e.current
	if reason == schema.EndCompleted {
		completed = len(e.steps)
	}
	ctx := context.Background()
	summary := &schema.CompletionSummary{
		SessionID:      e.sessionID,
		WorkoutID:      e.workoutID,
		WorkoutName:    e.workoutName,
		Reason:         reason,
		StartedAt:      e.startedAt,
		EndedAt:        e.clk.Now(),
		ElapsedSeconds: e.elapsed,
		CompletedSteps: completed,
		TotalSteps:     len(e.steps),
		Health:         e.health.Aggregates(ctx),
	}

	e.phase = schema.PhaseEnded
	e.restRem = 0
	e.manualRest = false
	e.bumpLocked(schema.EventSessionEnded)

	if err := e.sink.Complete(ctx, summary); err != nil {
		e.logger.Warn("completion sink failed",
			slog.String("session_id", e.sessionID),
			slog.String("error", err.Error()))
	}
	if err := e.progress.ClearProgress(ctx); err != nil {
		e.logger.Warn("clear progress failed", slog.String("error", err.Error()))
	}
	e.logger.Info("session ended",
		slog.String("session_id", e.sessionID),
		slog.String("reason", string(reason)),
		slog.Int("elapsed_s", e.elapsed),
		slog.Int("completed_steps", completed))
}

// --- timer path ---

func (e *Engine) scheduleTickLocked() {
	e.timerGen++
	gen := e.timerGen
	e.timer = e.clk.ScheduleRepeating(time.Second, func() { e.tick(gen) })
}

func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.clk.Cancel(e.timer)
		e.timer = nil
	}
	// Invalidate any tick already in flight.
	e.timerGen++
}

// tick is the per-second timer callback. The generation check closes the
// cancel race: a tick scheduled before a cancel that delivers after it finds
// a bumped generation and returns without touching state.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.timerGen {
		return
	}

	switch e.phase {
	case schema.PhaseRunning:
		step := e.currentStepLocked()
		if step == nil || !step.Timed() {
			return
		}
		e.elapsed++
		if e.remaining > 0 {
			e.remaining--
		}
		if e.remaining <= 0 {
			e.remaining = 0
			e.nextStepLocked()
			return
		}
		e.bumpLocked("")
	case schema.PhaseResting:
		if e.manualRest {
			return
		}
		e.elapsed++
		if e.restRem > 0 {
			e.restRem--
		}
		if e.restRem > 0 && e.restRem <= restCueWindow {
			e.cuer.RestCountdown(e.restRem)
		}
		if e.restRem <= 0 {
			e.restRem = 0
			e.completeRestLocked(schema.EventRestCompleted)
			return
		}
		e.bumpLocked("")
	}
}

// --- observation ---

// bumpLocked increments the state version and broadcasts the resulting
// snapshot; event, when non-empty, is additionally published as a named
// lifecycle event.
func (e *Engine) bumpLocked(event string) {
	e.version++
	snap := e.snapshotLocked()
	ctx := context.Background()
	_ = e.hub.Publish(ctx, remote.StreamEvent{
		SessionID: e.sessionID,
		EventType: remote.EventSnapshot,
		Snapshot:  &snap,
	})
	if event != "" {
		_ = e.hub.Publish(ctx, remote.StreamEvent{
			SessionID: e.sessionID,
			EventType: event,
			Snapshot:  &snap,
		})
	}
}

func (e *Engine) snapshotLocked() schema.StateSnapshot {
	snap := schema.StateSnapshot{
		StateVersion: e.version,
		WorkoutID:    e.workoutID,
		WorkoutName:  e.workoutName,
		Phase:        e.phase,
		StepIndex:    e.current,
		StepCount:    len(e.steps),
		IsManualRest: e.manualRest,
	}
	if step := e.currentStepLocked(); step != nil {
		snap.StepName = step.Label
		snap.StepType = step.Type
		snap.RoundInfo = step.RoundInfo
		snap.TargetReps = step.TargetReps
		snap.SetNumber = step.SetNumber
		snap.TotalSets = step.TotalSets
		switch {
		case e.phase == schema.PhaseResting && !e.manualRest:
			ms := int64(e.restRem) * 1000
			snap.RemainingMs = &ms
		case step.Timed():
			ms := int64(e.remaining) * 1000
			snap.RemainingMs = &ms
		}
	}
	if e.lastAck != nil {
		ack := *e.lastAck
		snap.LastCommandAck = &ack
	}
	return snap
}

func (e *Engine) saveProgressLocked() {
	p := &schema.SessionProgress{
		SessionID:      e.sessionID,
		WorkoutID:      e.workoutID,
		WorkoutName:    e.workoutName,
		StepIndex:      e.current,
		ElapsedSeconds: e.elapsed,
		SavedAt:        e.clk.Now(),
	}
	if err := e.progress.SaveProgress(context.Background(), p); err != nil {
		e.logger.Warn("save progress failed",
			slog.String("session_id", e.sessionID),
			slog.String("error", err.Error()))
	}
}

// Snapshot returns the current versioned session state.
func (e *Engine) Snapshot() schema.StateSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Phase returns the current session phase.
func (e *Engine) Phase() schema.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// StateVersion returns the monotonic state version.
func (e *Engine) StateVersion() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// SessionID returns the id of the current session, or "" when idle.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// ElapsedSeconds returns the monotonic elapsed seconds of the session.
func (e *Engine) ElapsedSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elapsed
}

// CurrentStep returns a copy of the current flattened step, or nil when the
// step list is empty or the session is idle.
func (e *Engine) CurrentStep() *schema.FlattenedStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	step := e.currentStepLocked()
	if step == nil {
		return nil
	}
	cp := *step
	return &cp
}

// Steps returns a copy of the flattened step sequence for the session.
func (e *Engine) Steps() []schema.FlattenedStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]schema.FlattenedStep, len(e.steps))
	copy(cp, e.steps)
	return cp
}

// Progress reports session progress in [0, 1]: 1/stepCount after start,
// advancing with the step pointer; 0 for an empty or idle session.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.steps) == 0 || e.phase == schema.PhaseIdle {
		return 0
	}
	if e.phase == schema.PhaseEnded {
		return 1
	}
	return float64(e.current+1) / float64(len(e.steps))
}
