package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/bahn/pkg/config"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
)

// Tool name constants.
const (
	ToolNamePlan   = "bahn_plan"
	ToolNameCommit = "bahn_commit"
	ToolNameUndo   = "bahn_undo"
	ToolNameStatus = "bahn_status"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRepoPath indicates the repo_path parameter is empty.
	ErrEmptyRepoPath = errors.New("repo_path parameter is required and must not be empty")
	// ErrRepoPathNotAbsolute indicates the repo_path is not an absolute path.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoNotFound indicates the repository path does not exist.
	ErrRepoNotFound = errors.New("repository path does not exist")
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")
	// ErrInvalidCount indicates a non-positive undo count.
	ErrInvalidCount = errors.New("count must be positive")
)

// Input types (auto-generate JSON schemas via struct tags).

// PlanInput is the input schema for the bahn_plan and bahn_commit tools.
type PlanInput struct {
	RepoPath string  `json:"repo_path"        jsonschema:"absolute path to a Git repository"`
	Mode     string  `json:"mode,omitempty"   jsonschema:"split mode: file, chunk or hunk (default from config)"`
	Target   int     `json:"target,omitempty" jsonschema:"desired number of commits (default: natural grouping)"`
	Spread   string  `json:"spread,omitempty" jsonschema:"scheduling window such as 2h, 90m or 1d (default: 2 to 4 hours)"`
	Start    string  `json:"start,omitempty"  jsonschema:"first commit time as YYYY-MM-DD HH:MM or RFC 3339 (default: now)"`
	Scope    string  `json:"scope,omitempty"  jsonschema:"changes to consider: both, staged or unstaged (default: both); committing unstaged needs an index without staged changes"`
	Seed     *uint64 `json:"seed,omitempty"   jsonschema:"random seed for a reproducible schedule"`
}

// UndoInput is the input schema for the bahn_undo tool.
type UndoInput struct {
	RepoPath string `json:"repo_path"       jsonschema:"absolute path to a Git repository"`
	Count    int    `json:"count,omitempty" jsonschema:"number of commits to remove (default: 1)"`
	Hard     bool   `json:"hard,omitempty"  jsonschema:"discard the changes of the removed commits"`
	Force    bool   `json:"force,omitempty" jsonschema:"allow removing commits that were already pushed"`
}

// StatusInput is the input schema for the bahn_status tool.
type StatusInput struct {
	RepoPath string `json:"repo_path"       jsonschema:"absolute path to a Git repository"`
	Scope    string `json:"scope,omitempty" jsonschema:"changes to consider: both, staged or unstaged (default: both)"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateRepoPath checks that path names the working tree of a repository.
func validateRepoPath(path string) error {
	if path == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(path) {
		return ErrRepoPathNotAbsolute
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, path)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRepoNotFound, path)
	}

	_, err = os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotGitRepo, path)
	}

	return nil
}

// workspace is an opened repository with its effective configuration.
type workspace struct {
	repo    *gitlib.Repository
	backend *gitlib.Backend
	cfg     *config.Config
}

func (w *workspace) close() {
	w.repo.Free()
}

// open validates path and opens the repository it names.
func (s *Server) open(path string) (*workspace, error) {
	err := validateRepoPath(path)
	if err != nil {
		return nil, err
	}

	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGitRepo, err)
	}

	cfg := s.config
	if cfg == nil {
		cfg, err = config.LoadConfig("", repo.Path())
		if err != nil {
			repo.Free()

			return nil, err
		}
	}

	return &workspace{repo: repo, backend: gitlib.NewBackend(repo), cfg: cfg}, nil
}

// planOptions merges the tool input over the configuration.
func planOptions(cfg *config.Config, input PlanInput) (engine.PlanOptions, error) {
	return engine.ResolveOptions(cfg, engine.Overrides{
		Mode:   input.Mode,
		Target: input.Target,
		Spread: input.Spread,
		Start:  input.Start,
		Scope:  input.Scope,
		Seed:   input.Seed,
	})
}
