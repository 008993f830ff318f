package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/meltforce/repflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Session progress ---

// SaveProgress upserts the single live resume record.
func (s *LibSQLStore) SaveProgress(ctx context.Context, p *schema.SessionProgress) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_progress (id, session_id, workout_id, workout_name, step_index, elapsed_seconds, saved_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   session_id=excluded.session_id, workout_id=excluded.workout_id,
		   workout_name=excluded.workout_name, step_index=excluded.step_index,
		   elapsed_seconds=excluded.elapsed_seconds, saved_at=excluded.saved_at`,
		p.SessionID, p.WorkoutID, p.WorkoutName, p.StepIndex, p.ElapsedSeconds, timeOrNow(p.SavedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save progress: %s", err.Error()).WithCause(err)
	}
	return nil
}

// LoadProgress returns the live resume record, or nil when none exists.
func (s *LibSQLStore) LoadProgress(ctx context.Context) (*schema.SessionProgress, error) {
	p := &schema.SessionProgress{}
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, workout_id, workout_name, step_index, elapsed_seconds, saved_at
		 FROM session_progress WHERE id = 1`,
	).Scan(&p.SessionID, &p.WorkoutID, &p.WorkoutName, &p.StepIndex, &p.ElapsedSeconds, &p.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load progress: %s", err.Error()).WithCause(err)
	}
	return p, nil
}

// ClearProgress removes the live resume record; no-op when absent.
func (s *LibSQLStore) ClearProgress(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_progress WHERE id = 1`)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "clear progress: %s", err.Error()).WithCause(err)
	}
	return nil
}

// --- Completion summaries ---

func (s *LibSQLStore) SaveSummary(ctx context.Context, sum *schema.CompletionSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completion_summaries
		   (session_id, workout_id, workout_name, reason, started_at, ended_at,
		    elapsed_seconds, completed_steps, total_steps, avg_heart_rate, max_heart_rate, active_calories)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   reason=excluded.reason, ended_at=excluded.ended_at,
		   elapsed_seconds=excluded.elapsed_seconds, completed_steps=excluded.completed_steps,
		   avg_heart_rate=excluded.avg_heart_rate, max_heart_rate=excluded.max_heart_rate,
		   active_calories=excluded.active_calories`,
		sum.SessionID, sum.WorkoutID, sum.WorkoutName, string(sum.Reason),
		sum.StartedAt, sum.EndedAt, sum.ElapsedSeconds, sum.CompletedSteps, sum.TotalSteps,
		nullFloat(sum.Health.AvgHeartRate), nullFloat(sum.Health.MaxHeartRate), nullFloat(sum.Health.ActiveCalories),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save summary: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListSummaries(ctx context.Context, limit int) ([]*schema.CompletionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, workout_id, workout_name, reason, started_at, ended_at,
		        elapsed_seconds, completed_steps, total_steps, avg_heart_rate, max_heart_rate, active_calories
		 FROM completion_summaries ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list summaries: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var out []*schema.CompletionSummary
	for rows.Next() {
		sum := &schema.CompletionSummary{}
		var reason string
		var avgHR, maxHR, cal sql.NullFloat64
		if err := rows.Scan(&sum.SessionID, &sum.WorkoutID, &sum.WorkoutName, &reason,
			&sum.StartedAt, &sum.EndedAt, &sum.ElapsedSeconds, &sum.CompletedSteps, &sum.TotalSteps,
			&avgHR, &maxHR, &cal); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan summary: %s", err.Error()).WithCause(err)
		}
		sum.Reason = schema.EndReason(reason)
		sum.Health.AvgHeartRate = floatOrNil(avgHR)
		sum.Health.MaxHeartRate = floatOrNil(maxHR)
		sum.Health.ActiveCalories = floatOrNil(cal)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// --- Workout templates ---

func (s *LibSQLStore) StoreTemplate(ctx context.Context, tpl *Template) error {
	def, err := json.Marshal(tpl.Workout)
	if err != nil {
		return fmt.Errorf("marshal workout: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workout_templates (name, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET definition=excluded.definition, updated_at=excluded.updated_at`,
		tpl.Name, string(def), timeOrNow(tpl.CreatedAt), now,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "store template: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetTemplate(ctx context.Context, name string) (*Template, error) {
	tpl := &Template{}
	var def string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, definition, created_at, updated_at FROM workout_templates WHERE name = ?`, name,
	).Scan(&tpl.Name, &def, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "template %q not found", name)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get template: %s", err.Error()).WithCause(err)
	}
	if err := json.Unmarshal([]byte(def), &tpl.Workout); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode template %q: %s", name, err.Error()).WithCause(err)
	}
	return tpl, nil
}

func (s *LibSQLStore) ListTemplates(ctx context.Context) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, definition, created_at, updated_at FROM workout_templates ORDER BY name`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list templates: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		tpl := &Template{}
		var def string
		if err := rows.Scan(&tpl.Name, &def, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan template: %s", err.Error()).WithCause(err)
		}
		if err := json.Unmarshal([]byte(def), &tpl.Workout); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "decode template %q: %s", tpl.Name, err.Error()).WithCause(err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteTemplate(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workout_templates WHERE name = ?`, name)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete template: %s", err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "template", name)
}

// --- Scheduled workouts ---

func (s *LibSQLStore) CreateScheduledWorkout(ctx context.Context, sw *ScheduledWorkout) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_workouts (id, template_name, cron_expr, enabled, last_run_at, next_run_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sw.ID, sw.TemplateName, sw.CronExpr, boolInt(sw.Enabled), nullTime(sw.LastRunAt), nullTime(sw.NextRunAt), timeOrNow(sw.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create scheduled workout: %s", err.Error()).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) ListScheduledWorkouts(ctx context.Context, enabledOnly bool) ([]*ScheduledWorkout, error) {
	q := `SELECT id, template_name, cron_expr, enabled, last_run_at, next_run_at, created_at FROM scheduled_workouts`
	if enabledOnly {
		q += ` WHERE enabled = 1`
	}
	q += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list scheduled workouts: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var out []*ScheduledWorkout
	for rows.Next() {
		sw := &ScheduledWorkout{}
		var enabled int
		var lastRun, nextRun sql.NullTime
		if err := rows.Scan(&sw.ID, &sw.TemplateName, &sw.CronExpr, &enabled, &lastRun, &nextRun, &sw.CreatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan scheduled workout: %s", err.Error()).WithCause(err)
		}
		sw.Enabled = enabled != 0
		sw.LastRunAt = timeOrNilPtr(lastRun)
		sw.NextRunAt = timeOrNilPtr(nextRun)
		out = append(out, sw)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) UpdateScheduledWorkoutRun(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_workouts SET last_run_at = ?, next_run_at = ? WHERE id = ?`,
		lastRun, nextRun, id,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "update scheduled workout: %s", err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "scheduled workout", id)
}

func (s *LibSQLStore) SetScheduledWorkoutEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_workouts SET enabled = ? WHERE id = ?`, boolInt(enabled), id,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "enable scheduled workout: %s", err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "scheduled workout", id)
}

func (s *LibSQLStore) DeleteScheduledWorkout(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_workouts WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete scheduled workout: %s", err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "scheduled workout", id)
}

// --- helpers ---

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timeOrNilPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func floatOrNil(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", kind, id)
	}
	return nil
}
