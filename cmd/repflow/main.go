package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/meltforce/repflow/internal/clock"
	"github.com/meltforce/repflow/internal/engine"
	"github.com/meltforce/repflow/internal/input"
	"github.com/meltforce/repflow/internal/logging"
	"github.com/meltforce/repflow/internal/mcp"
	"github.com/meltforce/repflow/internal/progress"
	"github.com/meltforce/repflow/internal/remote"
	"github.com/meltforce/repflow/internal/runner"
	"github.com/meltforce/repflow/internal/scheduler"
	"github.com/meltforce/repflow/internal/validation"
	"github.com/meltforce/repflow/pkg/schema"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(cfg, logger, os.Args[2:])
	case "simulate":
		err = cmdSimulate(cfg, logger, os.Args[2:])
	case "serve":
		err = cmdServe(cfg, logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  repflow run <workout.json>       execute a workout interactively
  repflow simulate <workout.json>  replay a workout under a virtual clock
  repflow serve                    expose the engine as an MCP stdio server`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func openStore(ctx context.Context, cfg Config) (*progress.LibSQLStore, error) {
	if err := os.MkdirAll(repflowDir(), 0o755); err != nil {
		return nil, err
	}
	store, err := progress.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func loadWorkout(path string) (*schema.Workout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return validation.DecodeWorkout(data)
}

// cmdRun executes a workout on the real clock, with reps and advances read
// from stdin. If a crash left saved progress for the same workout, the
// session resumes from the saved step.
func cmdRun(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run takes exactly one workout file")
	}

	w, err := loadWorkout(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	clk := clock.NewRealClock()
	provider := input.NewGestureProvider()
	eng := engine.New(engine.Deps{
		Clock:    clk,
		Sink:     progress.NewSink(store),
		Progress: store,
		Cuer:     terminalCuer{},
		Logger:   logger,
	})

	saved, err := store.LoadProgress(ctx)
	if err != nil {
		return err
	}
	if saved != nil && sameWorkout(saved, w) {
		logger.Info("resuming interrupted session",
			"workout_name", saved.WorkoutName,
			"step_index", saved.StepIndex,
			"elapsed_seconds", saved.ElapsedSeconds)
		err = eng.StartAt(w, saved.StepIndex, saved.ElapsedSeconds)
	} else {
		err = eng.Start(w)
	}
	if err != nil {
		return err
	}

	go readGestures(ctx, eng, provider)

	r := runner.New(eng, provider, clk, logger)
	return r.Run(ctx)
}

// readGestures maps stdin lines onto the gesture provider and the remote
// command surface: an empty line or "n" advances (and confirms rest over),
// a bare number reports completed reps, and p/r/s/b/q map to session
// commands.
func readGestures(ctx context.Context, eng *engine.Engine, provider *input.GestureProvider) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "", "n":
			provider.Advance()
			provider.Ready()
		case "p":
			eng.HandleRemoteCommand(schema.CommandPause, uuid.New().String())
		case "r":
			eng.HandleRemoteCommand(schema.CommandResume, uuid.New().String())
		case "s":
			eng.HandleRemoteCommand(schema.CommandSkipRest, uuid.New().String())
			provider.Ready()
		case "b":
			eng.HandleRemoteCommand(schema.CommandPrevStep, uuid.New().String())
		case "q":
			eng.HandleRemoteCommand(schema.CommandEnd, uuid.New().String())
			return
		default:
			if n, err := strconv.Atoi(line); err == nil && n >= 0 {
				provider.EnterReps(n)
			}
		}
	}
}

// cmdSimulate replays a workout under a virtual clock with a simulated
// athlete, printing the completion summary as JSON.
func cmdSimulate(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	speed := fs.Float64("speed", cfg.Speed, "speed multiplier (>= 1)")
	seed := fs.Int64("seed", cfg.Seed, "random seed for the simulated athlete")
	profilePath := fs.String("profile", cfg.Profile, "path to a simulation profile JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("simulate takes exactly one workout file")
	}

	w, err := loadWorkout(fs.Arg(0))
	if err != nil {
		return err
	}

	profile := input.DefaultProfile()
	if *profilePath != "" {
		data, err := os.ReadFile(*profilePath)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	clk := clock.NewVirtualClock(*speed)
	sink := &printSink{}
	eng := engine.New(engine.Deps{
		Clock:  clk,
		Sink:   sink,
		Logger: logger,
	})

	provider := input.NewSimProvider(clk, profile, *seed, func() map[string]any {
		snap := eng.Snapshot()
		return map[string]any{
			"step_index":   snap.StepIndex,
			"step_type":    string(snap.StepType),
			"phase":        string(snap.Phase),
			"step_count":   snap.StepCount,
			"target_reps":  intOrZero(snap.TargetReps),
			"set_number":   intOrZero(snap.SetNumber),
			"total_sets":   intOrZero(snap.TotalSets),
			"elapsed_secs": eng.ElapsedSeconds(),
		}
	})

	if err := eng.Start(w); err != nil {
		return err
	}

	r := runner.New(eng, provider, clk, logger)
	return r.Run(ctx)
}

// cmdServe runs the MCP stdio server with the store-backed engine, plus the
// cron scheduler so stored templates auto-start while serving.
func cmdServe(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := remote.NewMemoryHub()
	eng := engine.New(engine.Deps{
		Hub:      hub,
		Sink:     progress.NewSink(store),
		Progress: store,
		Logger:   logger,
	})

	sched := scheduler.NewScheduler(store, eng, logger)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := mcp.NewServer(mcp.ServerDeps{
		Engine: eng,
		Store:  store,
		Logger: logger,
	})

	logger.Info("mcp server listening on stdio", "db_path", cfg.DBPath)
	return srv.Serve(ctx)
}

// sameWorkout reports whether saved progress belongs to this workout.
// Workouts without an explicit id are matched by name.
func sameWorkout(saved *schema.SessionProgress, w *schema.Workout) bool {
	if w.ID != "" {
		return saved.WorkoutID == w.ID
	}
	return saved.WorkoutName == w.Name
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// terminalCuer prints rest countdown cues to stderr.
type terminalCuer struct{}

func (terminalCuer) RestCountdown(secondsLeft int) {
	fmt.Fprintf(os.Stderr, "rest: %d...\n", secondsLeft)
}

// printSink writes the completion summary to stdout as JSON.
type printSink struct{}

func (printSink) Complete(_ context.Context, summary *schema.CompletionSummary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
