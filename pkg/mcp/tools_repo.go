package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/lock"
	"github.com/Sumatoshi-tech/bahn/pkg/undo"
)

// UndoResult is the output of bahn_undo.
type UndoResult struct {
	Removed []string `json:"removed"`
	Hard    bool     `json:"hard"`
	Head    string   `json:"head"`
}

// handleUndo processes bahn_undo tool calls.
func (s *Server) handleUndo(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input UndoInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	count := input.Count
	if count == 0 {
		count = 1
	}

	if count < 0 {
		return errorResult(fmt.Errorf("%w: %d", ErrInvalidCount, count))
	}

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

	session, err := undo.SessionFromHistory(ctx, ws.backend, count, input.Force)
	if err != nil {
		return errorResult(err)
	}

	removed, err := undo.NewManager(ws.backend, session, s.logger).Undo(ctx, count, undo.Options{Hard: input.Hard})
	if err != nil {
		return errorResult(err)
	}

	s.commits.RecordUndo(ctx, len(removed))

	head, err := ws.backend.HeadID(ctx)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(UndoResult{Removed: removed, Hard: input.Hard, Head: head})
}

// handleStatus processes bahn_status tool calls.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input StatusInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	scope, err := changeset.ParseScope(input.Scope)
	if err != nil {
		return errorResult(err)
	}

	ws, err := s.open(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}
	defer ws.close()

	rules, err := ws.cfg.Rules()
	if err != nil {
		return errorResult(err)
	}

	report, err := engine.Status(ctx, ws.backend, scope, rules)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report)
}
