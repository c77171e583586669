package render_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
)

var start = time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)

func samplePlan() render.PlanView {
	return render.PlanView{
		Start:  start,
		End:    start.Add(3 * time.Hour),
		Spread: "4h0m0s",
		Commits: []engine.PreviewCommit{
			{
				Index: 1, Label: "chore(config): update config.yaml", Bucket: "config", Time: start.Add(17 * time.Second),
				Files: []engine.PreviewFile{{Path: "config.yaml", Status: "added", Ranges: []string{"1-3"}, Added: 3}},
			},
			{
				Index: 2, Label: "feat(utils): add Upper", Bucket: "utils", Time: start.Add(3 * time.Hour),
				Files: []engine.PreviewFile{{
					Path: "utils/strings.go", Status: "modified", Chunks: []string{"imports", "Upper"},
					Added: 6, Removed: 1,
				}},
			},
		},
		Warnings: []string{"target of 5 commits cannot be met, produced 2"},
	}
}

func TestRenderer_Plan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := render.New(render.Options{Now: start.Add(-2 * time.Hour)})
	require.NoError(t, r.Plan(&buf, samplePlan()))

	out := buf.String()
	assert.Contains(t, out, "Plan: 2 commits from 2025-01-05 09:00:00 to 2025-01-05 12:00:00")
	assert.Contains(t, out, "2 hours from now")
	assert.Contains(t, out, "config.yaml (added) :1-3")
	assert.Contains(t, out, "utils/strings.go [imports, Upper]")
	assert.Contains(t, out, "feat(utils): add Upper")
	assert.Contains(t, out, "warning: target of 5 commits")
	assert.Contains(t, out, "Gaps: median 2h59m43s, shortest 2h59m43s, longest 2h59m43s")
	assert.NotContains(t, out, "\x1b[", "colors disabled")
}

func TestRenderer_PlanWithColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := render.New(render.Options{Color: true, Now: start})
	require.NoError(t, r.Plan(&buf, samplePlan()))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestRenderer_Records(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := render.New(render.Options{})
	require.NoError(t, r.Records(&buf, []orchestrator.CommitRecord{
		{ID: "0123456789abcdef", Time: start, Message: "feat: add thing\n\nbody", Files: []string{"a.go", "b.go"}},
	}))

	out := buf.String()
	assert.Contains(t, out, "0123456")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "feat: add thing")
	assert.NotContains(t, out, "body")
	assert.Contains(t, out, "Created 1 commits")

	buf.Reset()
	require.NoError(t, r.Records(&buf, nil))
	assert.Equal(t, "No commits created.\n", buf.String())
}

func TestRenderer_Status(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	r := render.New(render.Options{})
	require.NoError(t, r.Status(&buf, &engine.StatusReport{
		Branch: "main", Head: "abc1234", Scope: "both", Unpushed: 2,
		Files: []engine.StatusFile{
			{Path: "go.mod", Status: "modified", Bucket: "config", Added: 1, Removed: 1},
			{Path: "main.go", Status: "added", Bucket: "feature", Added: 10},
		},
		Buckets: []engine.BucketCount{{Bucket: "config", Files: 1}, {Bucket: "feature", Files: 1}},
	}))

	out := buf.String()
	assert.Contains(t, out, "Branch: main at abc1234 (2 unpushed)")
	assert.Contains(t, out, "Changes: 2 files (config 1, feature 1)")
	assert.Contains(t, out, "main.go")

	buf.Reset()
	require.NoError(t, r.Status(&buf, &engine.StatusReport{Branch: "main", Head: "(unborn)", Scope: "staged", Unpushed: -1}))
	assert.Equal(t, "Branch: main at (unborn) (no upstream)\nNo staged changes.\n", buf.String())
}

func TestRenderer_Undone(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.New(render.Options{}).Undone(&buf, []string{"ffffffffff", "eeeeeeeeee"}, false))
	assert.Equal(t, "Undid 2 commits (changes kept in the index)\n  fffffff\n  eeeeeee\n", buf.String())
}

func TestRenderer_UndoPreview(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	entries := []render.UndoEntry{
		{ID: "ffffffffff", Time: time.Date(2025, 1, 5, 11, 2, 17, 0, time.UTC), Summary: "docs: update README.md"},
		{ID: "eeeeeeeeee", Time: time.Date(2025, 1, 5, 9, 0, 41, 0, time.UTC), Summary: "config: update config.yaml"},
	}

	require.NoError(t, render.New(render.Options{}).UndoPreview(&buf, entries, true))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Undo preview: 2 commits would be removed, their changes would be discarded\n"), out)
	assert.Contains(t, out, "fffffff")
	assert.Contains(t, out, "2025-01-05 11:02:17")
	assert.Contains(t, out, "config: update config.yaml")
}

func TestEncode(t *testing.T) {
	t.Parallel()

	var yamlBuf bytes.Buffer
	require.NoError(t, render.Encode(&yamlBuf, render.FormatYAML, samplePlan()))

	var fromYAML render.PlanView
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, "4h0m0s", fromYAML.Spread)
	require.Len(t, fromYAML.Commits, 2)
	assert.Equal(t, []string{"imports", "Upper"}, fromYAML.Commits[1].Files[0].Chunks)

	var jsonBuf bytes.Buffer
	require.NoError(t, render.Encode(&jsonBuf, render.FormatJSON, samplePlan()))

	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Contains(t, fromJSON, "commits")

	err := render.Encode(&jsonBuf, "xml", samplePlan())
	require.ErrorIs(t, err, render.ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		err  error
	}{
		{in: "", want: render.FormatTable},
		{in: "YAML", want: render.FormatYAML},
		{in: "json", want: render.FormatJSON},
		{in: "csv", err: render.ErrUnknownFormat},
	}

	for _, tt := range tests {
		got, err := render.ParseFormat(tt.in)
		if tt.err != nil {
			assert.True(t, errors.Is(err, tt.err), tt.in)

			continue
		}

		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteScheduleChart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.WriteScheduleChart(&buf, samplePlan()))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Commit schedule")
	assert.Contains(t, out, "#2 01-05 12:00")
}
