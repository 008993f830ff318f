// Package scheduler auto-starts stored workout templates on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meltforce/repflow/internal/progress"
	"github.com/meltforce/repflow/pkg/schema"
)

// SessionStarter is the interface the scheduler uses to start workouts.
// Satisfied by the engine (avoids an import cycle).
type SessionStarter interface {
	Start(w *schema.Workout) error
}

// Scheduler polls the store for due scheduled workouts and starts them.
type Scheduler struct {
	store   progress.Store
	starter SessionStarter
	parser  cron.Parser
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // schedule IDs currently starting (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(s progress.Store, starter SessionStarter, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    s,
		starter:  starter,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick checks all enabled schedules and starts those that are due.
func (s *Scheduler) tick(ctx context.Context) {
	schedules, err := s.store.ListScheduledWorkouts(ctx, true)
	if err != nil {
		s.logger.Error("failed to list scheduled workouts", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, sw := range schedules {
		if sw.NextRunAt == nil || !sw.NextRunAt.After(now) {
			if !s.tryAcquire(sw.ID) {
				continue // already starting (dedup)
			}
			if err := s.runSchedule(ctx, sw, now); err != nil {
				s.logger.Error("failed to run scheduled workout",
					slog.String("schedule_id", sw.ID),
					slog.String("error", err.Error()),
				)
			}
			s.release(sw.ID)
		}
	}
}

// runSchedule starts a scheduled workout and updates its timestamps.
func (s *Scheduler) runSchedule(ctx context.Context, sw *progress.ScheduledWorkout, now time.Time) error {
	s.logger.Info("starting scheduled workout",
		slog.String("schedule_id", sw.ID),
		slog.String("template", sw.TemplateName),
	)

	tpl, err := s.store.GetTemplate(ctx, sw.TemplateName)
	if err != nil {
		if updateErr := s.updateRunTimes(ctx, sw, now); updateErr != nil {
			return updateErr
		}
		return err
	}

	if err := s.starter.Start(&tpl.Workout); err != nil {
		s.logger.Error("scheduled workout start failed",
			slog.String("schedule_id", sw.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.updateRunTimes(ctx, sw, now)
}

func (s *Scheduler) updateRunTimes(ctx context.Context, sw *progress.ScheduledWorkout, now time.Time) error {
	nextRun, err := s.CalculateNextRun(sw.CronExpr, now)
	if err != nil {
		return fmt.Errorf("calculate next run for schedule %q: %w", sw.ID, err)
	}
	return s.store.UpdateScheduledWorkoutRun(ctx, sw.ID, now, nextRun)
}

// tryAcquire returns true and marks the schedule as in-flight if it is not already starting.
func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

// release removes the schedule from the in-flight set.
func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
