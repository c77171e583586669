package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/lock"
	"github.com/Sumatoshi-tech/bahn/pkg/message"
	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
)

// CommitView is a created commit in tool output.
type CommitView struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Files   []string  `json:"files"`
}

// CommitResult is the output of bahn_commit.
type CommitResult struct {
	Plan    render.PlanView `json:"plan"`
	Commits []CommitView    `json:"commits"`
	// Error is set when execution stopped part way; Commits lists what was
	// created before the failure.
	Error string `json:"error,omitempty"`
}

// handlePlan processes bahn_plan tool calls.
func (s *Server) handlePlan(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input PlanInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	ws, err := s.open(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}
	defer ws.close()

	plan, err := s.plan(ctx, ws, input, nil)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(render.NewPlanView(plan))
}

// handleCommit processes bahn_commit tool calls.
func (s *Server) handleCommit(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input PlanInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	ws, err := s.open(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}
	defer ws.close()

	held, err := lock.Acquire(ctx, ws.repo.GitDir())
	if err != nil {
		return errorResult(err)
	}

	defer func() {
		if releaseErr := held.Release(); releaseErr != nil {
			s.logger.WarnContext(ctx, "release lock", "error", releaseErr)
		}
	}()

	gen, err := message.New(ws.cfg.MessageSettings())
	if err != nil {
		return errorResult(err)
	}

	eng := s.engine(ws, engine.WithMessages(gen))

	plan, err := s.plan(ctx, ws, input, eng)
	if err != nil {
		return errorResult(err)
	}

	records, err := eng.Execute(ctx, plan)

	s.commits.RecordRun(ctx, plan.Stats(len(records)))

	result := CommitResult{Plan: render.NewPlanView(plan), Commits: commitViews(records)}
	if err != nil {
		result.Error = err.Error()

		out, output, encErr := jsonResult(result)
		if out != nil {
			out.IsError = true
		}

		return out, output, encErr
	}

	return jsonResult(result)
}

func (s *Server) engine(ws *workspace, opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{
		engine.WithLogger(s.logger),
		engine.WithMetrics(s.metrics),
	}, opts...)

	if s.tracer != nil {
		opts = append(opts, engine.WithTracer(s.tracer))
	}

	return engine.New(ws.backend, opts...)
}

// plan builds a plan with eng, or with a message-less engine when eng is nil.
func (s *Server) plan(ctx context.Context, ws *workspace, input PlanInput, eng *engine.Engine) (*engine.Plan, error) {
	opts, err := planOptions(ws.cfg, input)
	if err != nil {
		return nil, err
	}

	if eng == nil {
		eng = s.engine(ws)
	}

	plan, err := eng.Plan(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", ws.repo.Path(), err)
	}

	return plan, nil
}

func commitViews(records []orchestrator.CommitRecord) []CommitView {
	out := make([]CommitView, len(records))

	for i, r := range records {
		out[i] = CommitView{ID: r.ID, Time: r.Time, Message: r.Message, Files: r.Files}
	}

	return out
}
