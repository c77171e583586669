package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/mcp"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
)

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

// newRepo initializes a repository with a local identity.
func newRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	native, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	cfg, err := native.Config()
	require.NoError(t, err)
	require.NoError(t, cfg.SetString("user.name", "Test User"))
	require.NoError(t, cfg.SetString("user.email", "test@example.com"))
	cfg.Free()
	native.Free()

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return dir
}

func call(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func text(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	content, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return content.Text
}

var sampleFiles = map[string]string{
	"config.yaml": "name: demo\n",
	"main.go":     "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n",
	"README.md":   "# demo\n",
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	session := connect(t, srv)

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, toolsResult)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, srv.ListToolNames(), toolNames)
	assert.Equal(t, []string{"bahn_commit", "bahn_plan", "bahn_status", "bahn_undo"}, srv.ListToolNames())
}

func TestMCPServer_InMemoryTransport_Status(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, sampleFiles)
	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameStatus, map[string]any{"repo_path": dir})
	require.False(t, result.IsError, text(t, result))

	var report engine.StatusReport
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &report))

	assert.Equal(t, "(unborn)", report.Head)
	assert.Len(t, report.Files, 3)
}

func TestMCPServer_InMemoryTransport_PlanLeavesRepository(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, sampleFiles)
	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNamePlan, map[string]any{
		"repo_path": dir,
		"mode":      "file",
		"spread":    "1h",
		"start":     "2025-01-05 09:00",
		"seed":      7,
	})
	require.False(t, result.IsError, text(t, result))

	var view render.PlanView
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &view))
	require.NotEmpty(t, view.Commits)
	assert.Equal(t, "config", view.Commits[0].Bucket)

	status := call(t, session, mcp.ToolNameStatus, map[string]any{"repo_path": dir})

	var report engine.StatusReport
	require.NoError(t, json.Unmarshal([]byte(text(t, status)), &report))
	assert.Equal(t, "(unborn)", report.Head, "planning creates no commits")
}

func TestMCPServer_InMemoryTransport_CommitThenUndo(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, sampleFiles)
	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameCommit, map[string]any{
		"repo_path": dir,
		"mode":      "file",
		"spread":    "1h",
		"start":     "2025-01-05 09:00",
		"seed":      7,
	})
	require.False(t, result.IsError, text(t, result))

	var committed mcp.CommitResult
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &committed))
	require.NotEmpty(t, committed.Commits)
	assert.Len(t, committed.Commits, len(committed.Plan.Commits))
	assert.Empty(t, committed.Error)
	assert.NoFileExists(t, filepath.Join(dir, ".git", ".bahn.lock"))

	undone := call(t, session, mcp.ToolNameUndo, map[string]any{
		"repo_path": dir,
		"count":     len(committed.Commits),
	})
	require.False(t, undone.IsError, text(t, undone))

	var out mcp.UndoResult
	require.NoError(t, json.Unmarshal([]byte(text(t, undone)), &out))
	assert.Len(t, out.Removed, len(committed.Commits))
	assert.Empty(t, out.Head)

	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, sampleFiles["main.go"], string(data), "soft undo keeps the working tree")
}

func TestMCPServer_InMemoryTransport_InvalidRepoPath(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	tests := []struct {
		name string
		tool string
		path string
		want string
	}{
		{name: "empty", tool: mcp.ToolNameStatus, path: "", want: "repo_path parameter is required"},
		{name: "relative", tool: mcp.ToolNamePlan, path: "relative/path", want: "absolute path"},
		{name: "missing", tool: mcp.ToolNameCommit, path: "/nonexistent/path/to/repo", want: "does not exist"},
		{name: "not a repository", tool: mcp.ToolNameUndo, path: t.TempDir(), want: "not a git repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, session, tt.tool, map[string]any{"repo_path": tt.path})
			assert.True(t, result.IsError)
			assert.Contains(t, text(t, result), tt.want)
		})
	}
}

func TestMCPServer_InMemoryTransport_NothingToCommit(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, nil)
	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := call(t, session, mcp.ToolNameCommit, map[string]any{"repo_path": dir})
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "changes to decompose")
}
