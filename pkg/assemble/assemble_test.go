package assemble_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/assemble"
	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/chunk"
	"github.com/Sumatoshi-tech/bahn/pkg/hunkgroup"
	"github.com/Sumatoshi-tech/bahn/pkg/ordering"
)

const stringsSource = `package utils

import "strings"

func Upper(s string) string {
	return strings.ToUpper(s)
}

func Lower(s string) string {
	return strings.ToLower(s)
}

func Title(s string) string {
	return strings.ToTitle(s)
}
`

func entries(t *testing.T, files map[string][2]string) []ordering.Entry {
	t.Helper()

	chunker := chunk.NewChunker()

	var tagged []*hunkgroup.File

	for path, contents := range files {
		status := changeset.StatusModified
		if contents[0] == "" {
			status = changeset.StatusAdded
		}

		fc := changeset.NewFileChange(path, "", status, 0o100644, []byte(contents[0]), []byte(contents[1]))
		tagged = append(tagged, hunkgroup.Tag(fc, chunker.ChunkFile(path, []byte(contents[1]))))
	}

	return ordering.Order(tagged, ordering.MustDefaultRules())
}

func chunkNames(groups []assemble.Group) [][]string {
	out := make([][]string, 0, len(groups))

	for _, g := range groups {
		var names []string
		for _, p := range g.Parts {
			names = append(names, p.Chunks...)
		}

		out = append(out, names)
	}

	return out
}

func TestAssemble_ScenarioA(t *testing.T) {
	t.Parallel()

	in := entries(t, map[string][2]string{
		"config.json":         {"", "{\"debug\": true}\n"},
		"utils/strings.go":    {"", stringsSource},
		"feature/login.go":    {"", "package feature\n\nimport \"example.com/app/utils\"\n\nfunc Login() string {\n\treturn utils.Upper(\"x\")\n}\n"},
		"tests/login_test.go": {"", "package tests\n\nimport \"testing\"\n\nfunc TestLogin(t *testing.T) {}\n"},
	})

	result, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeFile})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	require.Len(t, result.Groups, 4)

	var paths []string
	for _, g := range result.Groups {
		assert.Len(t, g.Parts, 1)
		paths = append(paths, g.Paths()...)
	}

	assert.Equal(t, []string{"config.json", "utils/strings.go", "feature/login.go", "tests/login_test.go"}, paths)
	assert.Equal(t, "config: update config.json", result.Groups[0].Label())
}

func TestAssemble_ScenarioB(t *testing.T) {
	t.Parallel()

	in := entries(t, map[string][2]string{"utils/strings.go": {"", stringsSource}})

	natural, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeChunk})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"imports"}, {"Upper"}, {"Lower"}, {"Title"}}, chunkNames(natural.Groups))

	result, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeChunk, Target: 3})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"imports"}, {"Upper"}, {"Lower", "Title"}}, chunkNames(result.Groups))
}

func TestAssemble_CountExactness(t *testing.T) {
	t.Parallel()

	in := entries(t, map[string][2]string{
		"config.json":      {"", "{\"debug\": true}\n"},
		"utils/strings.go": {"", stringsSource},
		"README.md":        {"# Title\n\nOld text.\n", "# Title\n\nNew text.\n\nMore.\n"},
	})

	modes := map[assemble.Mode]int{
		assemble.ModeFile:  6,
		assemble.ModeChunk: 6,
		assemble.ModeHunk:  6,
	}

	for mode, units := range modes {
		for k := 1; k <= units; k++ {
			result, err := assemble.Assemble(in, assemble.Options{Mode: mode, Target: k, Threshold: hunkgroup.DefaultThreshold})
			require.NoError(t, err, "mode %s target %d", mode, k)
			assert.Len(t, result.Groups, k, "mode %s target %d", mode, k)
			assert.Empty(t, result.Warnings)
			require.NoError(t, assemble.Verify(in, result.Groups))
		}
	}
}

func TestAssemble_Unsatisfiable(t *testing.T) {
	t.Parallel()

	in := entries(t, map[string][2]string{"utils/strings.go": {"", stringsSource}})

	result, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeChunk, Target: 9})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Len(t, result.Groups, 4)

	var unsat *assemble.UnsatisfiableTargetCommitsError
	require.ErrorAs(t, result.Warnings[0], &unsat)
	assert.Equal(t, 9, unsat.Requested)
	assert.Equal(t, 4, unsat.Achieved)
	assert.ErrorIs(t, result.Warnings[0], assemble.ErrUnsatisfiable)
}

func TestAssemble_SplitsBelowModeGranularity(t *testing.T) {
	t.Parallel()

	oldSource := stringsSource
	newSource := strings.Replace(strings.Replace(stringsSource,
		"func Upper", "// Upper upper-cases s.\nfunc Upper", 1),
		"return strings.ToUpper(s)\n", "return strings.ToUpper(strings.TrimSpace(s))\n", 1)

	in := entries(t, map[string][2]string{"utils/strings.go": {oldSource, newSource}})

	natural, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeChunk})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Upper"}}, chunkNames(natural.Groups))

	for _, mode := range []assemble.Mode{assemble.ModeFile, assemble.ModeChunk} {
		result, err := assemble.Assemble(in, assemble.Options{Mode: mode, Target: 2})
		require.NoError(t, err, "mode %s", mode)
		assert.Empty(t, result.Warnings, "mode %s", mode)
		require.Len(t, result.Groups, 2, "mode %s", mode)
		assert.Equal(t, [][]string{{"Upper"}, {"Upper"}}, chunkNames(result.Groups), "mode %s", mode)
		require.NoError(t, assemble.Verify(in, result.Groups))

		over, err := assemble.Assemble(in, assemble.Options{Mode: mode, Target: 3})
		require.NoError(t, err, "mode %s", mode)
		assert.Len(t, over.Groups, 2, "mode %s", mode)
		assert.ErrorIs(t, errors.Join(over.Warnings...), assemble.ErrUnsatisfiable, "mode %s", mode)
	}

	hunkResult, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeHunk, Target: 2})
	require.NoError(t, err)
	assert.Len(t, hunkResult.Groups, 2)
	assert.Empty(t, hunkResult.Warnings)
}

func TestAssemble_MergePrefersSameBucket(t *testing.T) {
	t.Parallel()

	in := entries(t, map[string][2]string{
		"config.json": {"", "{}\n"},
		"app.yaml":    {"", "name: app\n"},
		"feature.go":  {"", "package main\n"},
	})

	result, err := assemble.Assemble(in, assemble.Options{Mode: assemble.ModeFile, Target: 2})
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)

	assert.Equal(t, []string{"app.yaml", "config.json"}, result.Groups[0].Paths())
	assert.Equal(t, "config: update app.yaml and 1 more", result.Groups[0].Label())
	assert.Equal(t, []string{"feature.go"}, result.Groups[1].Paths())
}

func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()

	files := map[string][2]string{
		"utils/strings.go": {"", stringsSource},
		"feature/a.go":     {"", "package feature\n\nfunc A() {}\n"},
		"docs/guide.md":    {"", "# Guide\n"},
	}

	first, err := assemble.Assemble(entries(t, files), assemble.Options{Target: 3})
	require.NoError(t, err)

	second, err := assemble.Assemble(entries(t, files), assemble.Options{Target: 3})
	require.NoError(t, err)

	assert.Equal(t, chunkNames(first.Groups), chunkNames(second.Groups))
}

func TestAssemble_NoUnits(t *testing.T) {
	t.Parallel()

	_, err := assemble.Assemble(nil, assemble.Options{})
	require.ErrorIs(t, err, assemble.ErrNoUnits)
}

func TestVerify_DetectsViolations(t *testing.T) {
	t.Parallel()

	in := entries(t, map[string][2]string{"utils/strings.go": {"", stringsSource}})

	result, err := assemble.Assemble(in, assemble.Options{})
	require.NoError(t, err)

	dropped := result.Groups[:len(result.Groups)-1]
	err = assemble.Verify(in, dropped)

	var violation *assemble.InvariantViolationError
	require.ErrorAs(t, err, &violation)
	assert.NotEmpty(t, violation.Missing)
	assert.Empty(t, violation.Duplicate)

	doubled := append(append([]assemble.Group(nil), result.Groups...), result.Groups[0])
	err = assemble.Verify(in, doubled)
	require.ErrorIs(t, err, assemble.ErrInvariantViolated)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want assemble.Mode
		err  bool
	}{
		{in: "", want: assemble.ModeChunk},
		{in: "file", want: assemble.ModeFile},
		{in: "Hunk", want: assemble.ModeHunk},
		{in: "semantic", want: assemble.ModeChunk},
		{in: "lines", err: true},
	}

	for _, tt := range tests {
		got, err := assemble.ParseMode(tt.in)
		if tt.err {
			require.ErrorIs(t, err, assemble.ErrUnknownMode)

			continue
		}

		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
