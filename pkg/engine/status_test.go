package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
)

func TestStatus_UnbornWithChanges(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("config.yaml", "name: demo\n")
	tr.writeFile("utils/strings.go", stringsSource)
	tr.writeFile("README.md", "# demo\n")

	report, err := engine.Status(context.Background(), gitlib.NewBackend(tr.repo), changeset.ScopeBoth, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, report.Branch)
	assert.Equal(t, "(unborn)", report.Head)
	assert.Equal(t, -1, report.Unpushed, "no upstream configured")
	require.Len(t, report.Files, 3)
	assert.Equal(t, []engine.BucketCount{
		{Bucket: "config", Files: 1},
		{Bucket: "utils", Files: 1},
		{Bucket: "docs", Files: 1},
	}, report.Buckets)

	for _, f := range report.Files {
		if f.Path == "utils/strings.go" {
			assert.Equal(t, 15, f.Added)
			assert.Zero(t, f.Removed)
		}
	}
}

func TestStatus_CleanTree(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("main.go", "package main\n")
	tr.initialCommit()

	report, err := engine.Status(context.Background(), gitlib.NewBackend(tr.repo), changeset.ScopeBoth, nil)
	require.NoError(t, err)

	assert.Len(t, report.Head, 7)
	assert.Empty(t, report.Files)
	assert.Empty(t, report.Buckets)
}
