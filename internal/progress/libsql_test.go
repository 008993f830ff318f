package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/repflow/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleProgress() *schema.SessionProgress {
	return &schema.SessionProgress{
		SessionID:      uuid.New().String(),
		WorkoutID:      "w-1",
		WorkoutName:    "Morning Strength",
		StepIndex:      3,
		ElapsedSeconds: 240,
		SavedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

// --- Session progress ---

func TestSaveAndLoadProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := sampleProgress()
	require.NoError(t, s.SaveProgress(ctx, p))

	got, err := s.LoadProgress(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.SessionID, got.SessionID)
	assert.Equal(t, p.WorkoutID, got.WorkoutID)
	assert.Equal(t, p.WorkoutName, got.WorkoutName)
	assert.Equal(t, 3, got.StepIndex)
	assert.Equal(t, 240, got.ElapsedSeconds)
}

func TestLoadProgress_AbsentReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadProgress(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveProgress_UpsertsSingleRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := sampleProgress()
	require.NoError(t, s.SaveProgress(ctx, p))

	p.StepIndex = 5
	p.ElapsedSeconds = 400
	require.NoError(t, s.SaveProgress(ctx, p))

	got, err := s.LoadProgress(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.StepIndex)
	assert.Equal(t, 400, got.ElapsedSeconds)
}

func TestClearProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProgress(ctx, sampleProgress()))
	require.NoError(t, s.ClearProgress(ctx))

	got, err := s.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing an empty store is a no-op.
	require.NoError(t, s.ClearProgress(ctx))
}

// --- Completion summaries ---

func sampleSummary(endedAt time.Time) *schema.CompletionSummary {
	hr := 141.5
	return &schema.CompletionSummary{
		SessionID:      uuid.New().String(),
		WorkoutID:      "w-1",
		WorkoutName:    "Morning Strength",
		Reason:         schema.EndCompleted,
		StartedAt:      endedAt.Add(-30 * time.Minute),
		EndedAt:        endedAt,
		ElapsedSeconds: 1800,
		CompletedSteps: 12,
		TotalSteps:     12,
		Health:         schema.HealthAggregates{AvgHeartRate: &hr},
	}
}

func TestSaveAndListSummaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	oldest := sampleSummary(now.Add(-2 * time.Hour))
	newest := sampleSummary(now)
	require.NoError(t, s.SaveSummary(ctx, oldest))
	require.NoError(t, s.SaveSummary(ctx, newest))

	got, err := s.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Most recent first.
	assert.Equal(t, newest.SessionID, got[0].SessionID)
	assert.Equal(t, oldest.SessionID, got[1].SessionID)

	assert.Equal(t, schema.EndCompleted, got[0].Reason)
	assert.Equal(t, 12, got[0].CompletedSteps)
	require.NotNil(t, got[0].Health.AvgHeartRate)
	assert.InDelta(t, 141.5, *got[0].Health.AvgHeartRate, 1e-9)
	assert.Nil(t, got[0].Health.MaxHeartRate)
}

func TestSaveSummary_UpsertBySessionID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sum := sampleSummary(time.Now().UTC())
	sum.Reason = schema.EndUserEnded
	require.NoError(t, s.SaveSummary(ctx, sum))

	sum.Reason = schema.EndCompleted
	sum.CompletedSteps = 12
	require.NoError(t, s.SaveSummary(ctx, sum))

	got, err := s.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, schema.EndCompleted, got[0].Reason)
}

func TestListSummaries_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveSummary(ctx, sampleSummary(now.Add(time.Duration(i)*time.Minute))))
	}

	got, err := s.ListSummaries(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

// --- Templates ---

func sampleTemplate(name string) *Template {
	return &Template{
		Name: name,
		Workout: schema.Workout{
			Name: "5x5",
			Intervals: []schema.Interval{
				schema.Warmup(300, ""),
				schema.Reps("Squat", 5, schema.RepsOpt{Sets: schema.IntPtr(5), RestSec: schema.IntPtr(180)}),
			},
		},
	}
}

func TestStoreAndGetTemplate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTemplate(ctx, sampleTemplate("strength-a")))

	got, err := s.GetTemplate(ctx, "strength-a")
	require.NoError(t, err)
	assert.Equal(t, "strength-a", got.Name)
	assert.Equal(t, "5x5", got.Workout.Name)
	require.Len(t, got.Workout.Intervals, 2)
	assert.Equal(t, schema.IntervalReps, got.Workout.Intervals[1].Kind)
	require.NotNil(t, got.Workout.Intervals[1].Sets)
	assert.Equal(t, 5, *got.Workout.Intervals[1].Sets)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetTemplate_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTemplate(context.Background(), "missing")
	require.Error(t, err)
	rfErr, ok := err.(*schema.RepflowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNotFound, rfErr.Code)
}

func TestStoreTemplate_UpsertByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTemplate(ctx, sampleTemplate("strength-a")))

	updated := sampleTemplate("strength-a")
	updated.Workout.Name = "5x3"
	require.NoError(t, s.StoreTemplate(ctx, updated))

	got, err := s.GetTemplate(ctx, "strength-a")
	require.NoError(t, err)
	assert.Equal(t, "5x3", got.Workout.Name)

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListAndDeleteTemplates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreTemplate(ctx, sampleTemplate("b-day")))
	require.NoError(t, s.StoreTemplate(ctx, sampleTemplate("a-day")))

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-day", all[0].Name) // ordered by name

	require.NoError(t, s.DeleteTemplate(ctx, "a-day"))
	all, err = s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = s.DeleteTemplate(ctx, "a-day")
	require.Error(t, err)
	rfErr, ok := err.(*schema.RepflowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNotFound, rfErr.Code)
}

// --- Scheduled workouts ---

func TestScheduledWorkoutLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.StoreTemplate(ctx, sampleTemplate("strength-a")))

	next := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	sw := &ScheduledWorkout{
		ID:           uuid.New().String(),
		TemplateName: "strength-a",
		CronExpr:     "0 7 * * 1",
		Enabled:      true,
		NextRunAt:    &next,
	}
	require.NoError(t, s.CreateScheduledWorkout(ctx, sw))

	list, err := s.ListScheduledWorkouts(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sw.ID, list[0].ID)
	assert.Equal(t, "0 7 * * 1", list[0].CronExpr)
	assert.True(t, list[0].Enabled)
	assert.Nil(t, list[0].LastRunAt)
	require.NotNil(t, list[0].NextRunAt)
	assert.WithinDuration(t, next, *list[0].NextRunAt, time.Second)

	lastRun := time.Now().UTC().Truncate(time.Second)
	nextRun := lastRun.Add(24 * time.Hour)
	require.NoError(t, s.UpdateScheduledWorkoutRun(ctx, sw.ID, lastRun, nextRun))

	list, err = s.ListScheduledWorkouts(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, list[0].LastRunAt)
	assert.WithinDuration(t, lastRun, *list[0].LastRunAt, time.Second)

	require.NoError(t, s.SetScheduledWorkoutEnabled(ctx, sw.ID, false))
	enabled, err := s.ListScheduledWorkouts(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, s.DeleteScheduledWorkout(ctx, sw.ID))
	list, err = s.ListScheduledWorkouts(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScheduledWorkout_UpdateMissingID(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateScheduledWorkoutRun(context.Background(), "missing", time.Now(), time.Now())
	require.Error(t, err)
	rfErr, ok := err.(*schema.RepflowError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNotFound, rfErr.Code)
}

// --- Migrations ---

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	// Re-running migrations on an up-to-date schema must be a no-op.
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.SaveProgress(ctx, sampleProgress()))
}

// --- Sink adapter ---

func TestSinkPersistsSummaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sink := NewSink(s)
	require.NoError(t, sink.Complete(ctx, sampleSummary(time.Now().UTC())))

	got, err := s.ListSummaries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
