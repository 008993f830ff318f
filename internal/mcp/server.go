// Package mcp exposes the workout engine as an MCP tool server, so a
// companion agent can start workouts, drive a session with remote commands,
// and read back state and history over stdio.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/repflow/internal/progress"
	"github.com/meltforce/repflow/pkg/schema"
)

// Engine is the engine-side contract the MCP tools drive.
type Engine interface {
	Start(w *schema.Workout) error
	HandleRemoteCommand(command, commandID string) schema.CommandAck
	Snapshot() schema.StateSnapshot
	Steps() []schema.FlattenedStep
	Progress() float64
	SessionID() string
}

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Engine Engine
	Store  progress.Store
	Logger *slog.Logger
}

// Server wraps an MCP server with repflow-specific tool handlers.
type Server struct {
	engine    Engine
	store     progress.Store
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new Server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		engine: deps.Engine,
		store:  deps.Store,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"repflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Repflow executes workouts as linear step sequences. Use repflow.start to begin a session (inline workout or stored template), repflow.command to control it (PAUSE/RESUME/NEXT_STEP/PREV_STEP/SKIP_REST/END), repflow.status to read the current snapshot, repflow.define to store a template, repflow.schedule to auto-start a template on a cron expression, and repflow.summaries to list completed sessions."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: startTool(), Handler: s.handleStart},
		{Tool: commandTool(), Handler: s.handleCommand},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
		{Tool: summariesTool(), Handler: s.handleSummaries},
	}
}

// --- Tool definitions ---

func startTool() mcp.Tool {
	return mcp.NewTool("repflow.start",
		mcp.WithDescription("Start a workout session from a stored template or an inline workout description"),
		mcp.WithString("template_name", mcp.Description("Name of a stored workout template")),
		mcp.WithObject("workout", mcp.Description("Inline workout description (used when template_name is absent)")),
	)
}

func commandTool() mcp.Tool {
	return mcp.NewTool("repflow.command",
		mcp.WithDescription("Submit a remote command to the running session"),
		mcp.WithString("command", mcp.Required(),
			mcp.Enum(schema.CommandPause, schema.CommandResume, schema.CommandNextStep,
				schema.CommandPrevStep, schema.CommandSkipRest, schema.CommandEnd),
			mcp.Description("Command token"),
		),
		mcp.WithString("command_id", mcp.Description("Caller-supplied id for ack correlation; generated when absent")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("repflow.status",
		mcp.WithDescription("Get the current session state snapshot"),
		mcp.WithBoolean("include_steps", mcp.Description("Include the full flattened step sequence")),
	)
}

func defineTool() mcp.Tool {
	return mcp.NewTool("repflow.define",
		mcp.WithDescription("Store a reusable workout template"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
		mcp.WithObject("workout", mcp.Required(), mcp.Description("Workout description object")),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("repflow.schedule",
		mcp.WithDescription("Auto-start a stored template on a cron schedule"),
		mcp.WithString("template_name", mcp.Required(), mcp.Description("Stored template to start")),
		mcp.WithString("cron", mcp.Required(), mcp.Description("Cron expression (minute hour dom month dow)")),
	)
}

func summariesTool() mcp.Tool {
	return mcp.NewTool("repflow.summaries",
		mcp.WithDescription("List completion summaries of past sessions"),
		mcp.WithNumber("limit", mcp.Description("Maximum summaries to return (default 50)")),
	)
}
