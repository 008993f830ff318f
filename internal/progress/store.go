package progress

import (
	"context"
	"time"

	"github.com/meltforce/repflow/pkg/schema"
)

// Template is a named, stored workout definition that remote surfaces and
// the scheduler can start by name.
type Template struct {
	Name      string
	Workout   schema.Workout
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledWorkout is a cron-scheduled auto-start of a stored template.
type ScheduledWorkout struct {
	ID           string
	TemplateName string
	CronExpr     string
	Enabled      bool
	LastRunAt    *time.Time
	NextRunAt    *time.Time
	CreatedAt    time.Time
}

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Crash-safe resume state (at most one live record).
	SaveProgress(ctx context.Context, p *schema.SessionProgress) error
	LoadProgress(ctx context.Context) (*schema.SessionProgress, error) // nil when absent
	ClearProgress(ctx context.Context) error

	// Completion summaries
	SaveSummary(ctx context.Context, s *schema.CompletionSummary) error
	ListSummaries(ctx context.Context, limit int) ([]*schema.CompletionSummary, error)

	// Workout templates
	StoreTemplate(ctx context.Context, tpl *Template) error
	GetTemplate(ctx context.Context, name string) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
	DeleteTemplate(ctx context.Context, name string) error

	// Scheduled workouts
	CreateScheduledWorkout(ctx context.Context, sw *ScheduledWorkout) error
	ListScheduledWorkouts(ctx context.Context, enabledOnly bool) ([]*ScheduledWorkout, error)
	UpdateScheduledWorkoutRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
	SetScheduledWorkoutEnabled(ctx context.Context, id string, enabled bool) error
	DeleteScheduledWorkout(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Sink adapts a Store to the engine's completion sink contract, persisting
// every completion summary.
type Sink struct {
	store Store
}

// NewSink wraps a Store as a completion sink.
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

// Complete persists the summary.
func (s *Sink) Complete(ctx context.Context, summary *schema.CompletionSummary) error {
	return s.store.SaveSummary(ctx, summary)
}
