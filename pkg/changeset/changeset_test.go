package changeset_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
)

func TestComputeHunks_ModifyAndAppend(t *testing.T) {
	t.Parallel()

	hunks := changeset.ComputeHunks([]byte("a\nb\nc\n"), []byte("a\nB\nc\nd\n"))
	require.Len(t, hunks, 2)

	assert.Equal(t, 2, hunks[0].OldStart)
	assert.Equal(t, 1, hunks[0].OldLines)
	assert.Equal(t, 2, hunks[0].NewStart)
	assert.Equal(t, 1, hunks[0].NewLines)
	assert.Equal(t, []string{"b\n"}, hunks[0].Removed)
	assert.Equal(t, []string{"B\n"}, hunks[0].Added)
	assert.Equal(t, "a", hunks[0].Context)

	assert.True(t, hunks[1].IsPureAddition())
	assert.Equal(t, 3, hunks[1].OldStart)
	assert.Equal(t, 4, hunks[1].NewStart)
	assert.Equal(t, "c", hunks[1].Context)
}

func TestComputeHunks_AddedFile(t *testing.T) {
	t.Parallel()

	hunks := changeset.ComputeHunks(nil, []byte("x\ny\n"))
	require.Len(t, hunks, 1)
	assert.Equal(t, 0, hunks[0].OldStart)
	assert.Equal(t, 1, hunks[0].NewStart)
	assert.Equal(t, 2, hunks[0].NewLines)
}

func TestComputeHunks_PureDeletion(t *testing.T) {
	t.Parallel()

	hunks := changeset.ComputeHunks([]byte("a\nb\nc\n"), []byte("a\nc\n"))
	require.Len(t, hunks, 1)
	assert.True(t, hunks[0].IsPureDeletion())
	assert.Equal(t, 1, hunks[0].NewStart)

	first, last := hunks[0].NewRange()
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, last)
}

func TestApply_Subsets(t *testing.T) {
	t.Parallel()

	oldContent := []byte("a\nb\nc\n")
	newContent := []byte("a\nB\nc\nd\n")
	hunks := changeset.ComputeHunks(oldContent, newContent)
	require.Len(t, hunks, 2)

	tests := []struct {
		name  string
		hunks []changeset.Hunk
		want  string
	}{
		{name: "none", hunks: nil, want: "a\nb\nc\n"},
		{name: "first", hunks: hunks[:1], want: "a\nB\nc\n"},
		{name: "second", hunks: hunks[1:], want: "a\nb\nc\nd\n"},
		{name: "reversed", hunks: []changeset.Hunk{hunks[1], hunks[0]}, want: string(newContent)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := changeset.Apply(oldContent, tt.hunks)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestApply_Mismatch(t *testing.T) {
	t.Parallel()

	hunk := changeset.Hunk{OldStart: 1, OldLines: 1, NewStart: 1, NewLines: 0, Removed: []string{"zzz\n"}}

	_, err := changeset.Apply([]byte("a\n"), []changeset.Hunk{hunk})
	require.ErrorIs(t, err, changeset.ErrHunkMismatch)
}

func TestNewFileChange_BinaryIsOpaque(t *testing.T) {
	t.Parallel()

	fc := changeset.NewFileChange("logo.png", "", changeset.StatusAdded, 0o100644, nil, []byte("\x89PNG\x00\x01"))

	assert.True(t, fc.Binary)
	assert.True(t, fc.Opaque())
	require.Len(t, fc.Hunks, 1)
	assert.True(t, fc.Hunks[0].Opaque)

	content, err := fc.Content(fc.Hunks)
	require.NoError(t, err)
	assert.Equal(t, fc.NewContent, content)
}

func TestNewFileChange_PureRenameIsOpaque(t *testing.T) {
	t.Parallel()

	fc := changeset.NewFileChange("b.txt", "a.txt", changeset.StatusRenamed, 0o100644, []byte("x\n"), []byte("x\n"))

	assert.True(t, fc.Opaque())
	assert.Equal(t, []changeset.LineKey{{Path: "b.txt", Side: '*'}}, changeset.HunkLineKeys(fc.Path, fc.Hunks[0]))
}

func TestChangeset_LineKeys(t *testing.T) {
	t.Parallel()

	cs := &changeset.Changeset{Files: []*changeset.FileChange{
		changeset.NewFileChange("f.txt", "", changeset.StatusModified, 0o100644, []byte("a\nb\n"), []byte("a\nB\n")),
	}}

	keys := cs.LineKeys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, changeset.LineKey{Path: "f.txt", Side: '-', Line: 2})
	assert.Contains(t, keys, changeset.LineKey{Path: "f.txt", Side: '+', Line: 2})
}

func TestFormatPatch(t *testing.T) {
	t.Parallel()

	fc := changeset.NewFileChange("main.go", "", changeset.StatusModified, 0o100644,
		[]byte("package main\nfunc a() {}\n"), []byte("package main\nfunc b() {}"))

	patch := changeset.FormatPatch(fc, fc.Hunks)

	assert.Contains(t, patch, "diff --git a/main.go b/main.go\n")
	assert.Contains(t, patch, "@@ -2,1 +2,1 @@ package main\n")
	assert.Contains(t, patch, "-func a() {}\n")
	assert.Contains(t, patch, "+func b() {}\n\\ No newline at end of file\n")
}

func TestParseScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  changeset.Scope
	}{
		{"", changeset.ScopeBoth},
		{"staged", changeset.ScopeStaged},
		{"Unstaged", changeset.ScopeUnstaged},
	}

	for _, tt := range tests {
		got, err := changeset.ParseScope(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := changeset.ParseScope("sideways")
	require.ErrorIs(t, err, changeset.ErrUnknownScope)
}

type stubSource struct {
	cs  *changeset.Changeset
	err error
}

func (s stubSource) CurrentChangeset(context.Context, changeset.Scope) (*changeset.Changeset, error) {
	return s.cs, s.err
}

func TestIngest(t *testing.T) {
	t.Parallel()

	_, err := changeset.Ingest(context.Background(), stubSource{cs: &changeset.Changeset{}}, changeset.ScopeStaged)

	var noChanges *changeset.NoChangesError
	require.ErrorAs(t, err, &noChanges)
	assert.Equal(t, changeset.ScopeStaged, noChanges.Scope)
	require.ErrorIs(t, err, changeset.ErrNoChanges)

	boom := errors.New("boom")
	_, err = changeset.Ingest(context.Background(), stubSource{err: boom}, changeset.ScopeBoth)
	require.ErrorIs(t, err, boom)

	cs := &changeset.Changeset{Files: []*changeset.FileChange{
		changeset.NewFileChange("a.txt", "", changeset.StatusAdded, 0o100644, nil, []byte("a\n")),
	}}

	got, err := changeset.Ingest(context.Background(), stubSource{cs: cs}, changeset.ScopeUnstaged)
	require.NoError(t, err)
	assert.Equal(t, changeset.ScopeUnstaged, got.Scope)
}
