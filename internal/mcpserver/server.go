// Package mcpserver exposes the orchestrator as Model Context Protocol tools
// over stdio, so an assistant can inspect jobs and trigger runs.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
)

// Tool names.
const (
	ToolListJobs   = "list_jobs"
	ToolGetStatus  = "get_status"
	ToolRunJob     = "run_job"
	ToolRecentRuns = "recent_runs"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// Service is the orchestrator surface the tools call.
type Service interface {
	Status() orchestrator.Status
	ListJobs() []orchestrator.JobInfo
	Recent(ctx context.Context, job string, limit int) ([]history.Run, error)
	RunManually(ctx context.Context, name string) (history.Run, error)
	Wait(ctx context.Context, runID string) (history.Run, error)
}

var _ Service = (*orchestrator.Orchestrator)(nil)

// Options configures a Server.
type Options struct {
	Version string

	// WaitTimeout bounds run_job with wait=true. Default: 1m.
	WaitTimeout time.Duration

	Logger *slog.Logger
}

// Server is an MCP tool server backed by a Service.
type Server struct {
	svc         Service
	mcp         *server.MCPServer
	waitTimeout time.Duration
	logger      *slog.Logger
}

// New builds the server and registers every tool.
func New(svc Service, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("mcpserver: nil Service")
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		svc:         svc,
		waitTimeout: opts.WaitTimeout,
		logger:      opts.Logger,
		mcp: server.NewMCPServer("taskmaster", opts.Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcp.NewTool(ToolListJobs,
		mcp.WithDescription("List every scheduled job with its trigger, next run and whether it is running."),
	), s.listJobs)

	s.mcp.AddTool(mcp.NewTool(ToolGetStatus,
		mcp.WithDescription("Report scheduler state, job count, active runs and system health."),
	), s.getStatus)

	s.mcp.AddTool(mcp.NewTool(ToolRunJob,
		mcp.WithDescription("Start a job immediately. Fails if the job is unknown or already running."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Job id, e.g. health_check")),
		mcp.WithBoolean("wait", mcp.Description("Block until the run finishes and return its outcome")),
	), s.runJob)

	s.mcp.AddTool(mcp.NewTool(ToolRecentRuns,
		mcp.WithDescription("Return the most recent runs of a job, newest first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Job id")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (1-100, default 10)")),
	), s.recentRuns)

	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("mcp: serving on stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp: serve: %w", err)
	}
	return nil
}

func (s *Server) listJobs(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.svc.ListJobs()
	if jobs == nil {
		jobs = []orchestrator.JobInfo{}
	}
	return jsonResult(map[string]any{"jobs": jobs})
}

func (s *Server) getStatus(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Status())
}

func (s *Server) runJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	run, err := s.svc.RunManually(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("mcp: job started", "job", name, "run_id", run.ID)

	if !req.GetBool("wait", false) {
		return jsonResult(run)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.waitTimeout)
	defer cancel()
	done, err := s.svc.Wait(waitCtx, run.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("waiting for run %s: %v", run.ID, err)), nil
	}
	return jsonResult(done)
}

func (s *Server) recentRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultRecentLimit)
	if limit < 1 || limit > maxRecentLimit {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be between 1 and %d", maxRecentLimit)), nil
	}

	runs, err := s.svc.Recent(ctx, name, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if runs == nil {
		runs = []history.Run{}
	}
	return jsonResult(map[string]any{"runs": runs})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
