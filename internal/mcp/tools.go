package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/robfig/cron/v3"

	"github.com/meltforce/repflow/internal/logging"
	"github.com/meltforce/repflow/internal/progress"
	"github.com/meltforce/repflow/internal/validation"
	"github.com/meltforce/repflow/pkg/schema"
)

// handleStart starts a session from a stored template or an inline workout.
func (s *Server) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var workout *schema.Workout

	templateName := req.GetString("template_name", "")
	if templateName != "" {
		tpl, err := s.store.GetTemplate(ctx, templateName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("template lookup failed: %v", err)), nil
		}
		workout = &tpl.Workout
	} else {
		raw := mcp.ParseStringMap(req, "workout", nil)
		if raw == nil {
			return mcp.NewToolResultError("either template_name or workout is required"), nil
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid workout: %v", err)), nil
		}
		workout, err = validation.DecodeWorkout(data)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid workout: %v", err)), nil
		}
	}

	if err := s.engine.Start(workout); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("start failed: %v", err)), nil
	}

	snap := s.engine.Snapshot()
	ctx = logging.WithSessionID(ctx, s.engine.SessionID())
	logging.LogWith(ctx, s.logger).Info("session started via mcp",
		"workout_name", snap.WorkoutName,
		"step_count", snap.StepCount)

	return marshalResult(map[string]any{
		"session_id": s.engine.SessionID(),
		"snapshot":   snap,
	})
}

// handleCommand submits a remote command and returns the ack. Duplicate
// command ids replay the cached ack without re-executing.
func (s *Server) handleCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	commandID := req.GetString("command_id", "")
	if commandID == "" {
		commandID = uuid.New().String()
	}

	ack := s.engine.HandleRemoteCommand(command, commandID)

	ctx = logging.WithCommandID(ctx, commandID)
	logging.LogWith(ctx, s.logger).Info("remote command handled",
		"command", command,
		"status", ack.Status)

	return marshalResult(map[string]any{
		"ack":      ack,
		"snapshot": s.engine.Snapshot(),
	})
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]any{
		"snapshot": s.engine.Snapshot(),
		"progress": s.engine.Progress(),
	}
	if req.GetBool("include_steps", false) {
		result["steps"] = s.engine.Steps()
	}
	return marshalResult(result)
}

func (s *Server) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw := mcp.ParseStringMap(req, "workout", nil)
	if raw == nil {
		return mcp.NewToolResultError("workout is required"), nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workout: %v", err)), nil
	}
	workout, err := validation.DecodeWorkout(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workout: %v", err)), nil
	}

	tpl := &progress.Template{Name: name, Workout: *workout}
	if err := s.store.StoreTemplate(ctx, tpl); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store failed: %v", err)), nil
	}

	s.logger.Info("template stored via mcp", "template_name", name)

	return marshalResult(map[string]any{
		"name":   name,
		"stored": true,
	})
}

func (s *Server) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateName, err := req.RequireString("template_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cronExpr, err := req.RequireString("cron")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.store.GetTemplate(ctx, templateName); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("template lookup failed: %v", err)), nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cronExpr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid cron expression: %v", err)), nil
	}
	nextRun := sched.Next(time.Now())

	sw := &progress.ScheduledWorkout{
		ID:           uuid.New().String(),
		TemplateName: templateName,
		CronExpr:     cronExpr,
		Enabled:      true,
		NextRunAt:    &nextRun,
	}
	if err := s.store.CreateScheduledWorkout(ctx, sw); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("schedule failed: %v", err)), nil
	}

	s.logger.Info("workout scheduled via mcp",
		"schedule_id", sw.ID,
		"template_name", templateName,
		"next_run", nextRun)

	return marshalResult(map[string]any{
		"schedule_id": sw.ID,
		"next_run_at": nextRun,
	})
}

func (s *Server) handleSummaries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}

	summaries, err := s.store.ListSummaries(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"count":     len(summaries),
		"summaries": summaries,
	})
}

// marshalResult serializes v as the JSON tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
