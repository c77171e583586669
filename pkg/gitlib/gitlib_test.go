package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
)

// testRepo wraps a test repository for integration testing.
type testRepo struct {
	t    *testing.T
	path string
	repo *gitlib.Repository
}

// newTestRepo creates an empty repository with a commit identity.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	native, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	native.Free()

	repo, err := gitlib.OpenRepository(dir)
	require.NoError(t, err)
	repo.SetIdentity("Test User", "test@example.com")

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, repo: repo}
}

// writeFile creates or overwrites a file in the working directory.
func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

func (tr *testRepo) readFile(name string) string {
	tr.t.Helper()

	data, err := os.ReadFile(filepath.Join(tr.path, name))
	require.NoError(tr.t, err)

	return string(data)
}

// commitAll stages every working tree change and commits it.
func (tr *testRepo) commitAll(message string, when time.Time) gitlib.Hash {
	tr.t.Helper()

	ctx := context.Background()

	cs, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeBoth)
	require.NoError(tr.t, err)

	files := make([]changeset.StagedFile, 0, len(cs.Files))
	for _, f := range cs.Files {
		files = append(files, changeset.StagedFile{
			Path:    f.Path,
			OldPath: f.OldPath,
			Content: f.NewContent,
			Mode:    f.Mode,
			Delete:  f.Status == changeset.StatusDeleted,
		})
	}

	require.NoError(tr.t, tr.repo.Stage(ctx, files))

	hash, err := tr.repo.Commit(ctx, message, when, when)
	require.NoError(tr.t, err)

	return hash
}

func TestOpenRepository_NotARepo(t *testing.T) {
	t.Parallel()

	_, err := gitlib.OpenRepository(t.TempDir())
	require.ErrorIs(t, err, gitlib.ErrNotRepository)
}

func TestInitRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	created, err := gitlib.InitRepository(dir)
	require.NoError(t, err)
	created.Free()

	repo, err := gitlib.OpenRepository(dir)
	require.NoError(t, err)
	defer repo.Free()

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	actual, err := filepath.EvalSymlinks(repo.Path())
	require.NoError(t, err)
	assert.Equal(t, resolved, actual)

	_, err = repo.Head(context.Background())
	require.ErrorIs(t, err, gitlib.ErrUnbornHead)
}

func TestCurrentChangeset_Scopes(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()

	tr.writeFile("a.txt", "a\nb\n")
	tr.writeFile("gone.txt", "bye\n")
	tr.commitAll("initial", time.Now())

	tr.writeFile("a.txt", "a\nB\n")
	tr.writeFile("dir/new.txt", "new\n")
	require.NoError(t, os.Remove(filepath.Join(tr.path, "gone.txt")))

	cs, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeBoth)
	require.NoError(t, err)
	require.Len(t, cs.Files, 3)

	modified := cs.File("a.txt")
	require.NotNil(t, modified)
	assert.Equal(t, changeset.StatusModified, modified.Status)
	require.Len(t, modified.Hunks, 1)
	assert.Equal(t, []string{"B\n"}, modified.Hunks[0].Added)

	added := cs.File("dir/new.txt")
	require.NotNil(t, added)
	assert.Equal(t, changeset.StatusAdded, added.Status)

	deleted := cs.File("gone.txt")
	require.NotNil(t, deleted)
	assert.Equal(t, changeset.StatusDeleted, deleted.Status)
	assert.Equal(t, "bye\n", string(deleted.OldContent))

	staged, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeStaged)
	require.NoError(t, err)
	assert.True(t, staged.Empty())

	require.NoError(t, tr.repo.Stage(ctx, []changeset.StagedFile{{Path: "a.txt", Content: []byte("a\nB\n")}}))

	staged, err = tr.repo.CurrentChangeset(ctx, changeset.ScopeStaged)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, staged.Paths())

	unstaged, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeUnstaged)
	require.NoError(t, err)
	assert.Nil(t, unstaged.File("a.txt"))
	assert.NotNil(t, unstaged.File("dir/new.txt"))
}

func TestStage_PartialContentLeavesWorkingTree(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()

	tr.writeFile("f.txt", "one\n")
	tr.commitAll("initial", time.Now())
	tr.writeFile("f.txt", "one\ntwo\nthree\n")

	require.NoError(t, tr.repo.Stage(ctx, []changeset.StagedFile{{Path: "f.txt", Content: []byte("one\ntwo\n")}}))

	_, err := tr.repo.Commit(ctx, "add two", time.Now(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "one\ntwo\nthree\n", tr.readFile("f.txt"))

	cs, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeBoth)
	require.NoError(t, err)
	require.Len(t, cs.Files, 1)
	assert.Equal(t, []string{"three\n"}, cs.Files[0].Hunks[0].Added)
}

func TestCommit_Timestamps(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()

	authored := time.Date(2025, 1, 5, 9, 13, 47, 0, time.UTC)
	committed := authored.Add(3 * time.Minute)

	tr.writeFile("a.txt", "a\n")
	require.NoError(t, tr.repo.Stage(ctx, []changeset.StagedFile{{Path: "a.txt", Content: []byte("a\n")}}))

	hash, err := tr.repo.Commit(ctx, "feat: add a\n", authored, committed)
	require.NoError(t, err)

	commit, err := tr.repo.LookupCommit(ctx, hash)
	require.NoError(t, err)
	defer commit.Free()

	assert.Equal(t, authored.Unix(), commit.Author().When.Unix())
	assert.Equal(t, committed.Unix(), commit.Committer().When.Unix())
	assert.Equal(t, "Test User", commit.Author().Name)
	assert.Equal(t, "feat: add a", commit.Summary())
	assert.Equal(t, 0, commit.NumParents())

	_, err = commit.ParentHash(0)
	require.ErrorIs(t, err, gitlib.ErrParentNotFound)
}

func TestUnstageAll(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()

	tr.writeFile("a.txt", "a\n")
	tr.commitAll("initial", time.Now())

	require.NoError(t, tr.repo.Stage(ctx, []changeset.StagedFile{{Path: "b.txt", Content: []byte("b\n")}}))
	require.NoError(t, tr.repo.UnstageAll(ctx))

	staged, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeStaged)
	require.NoError(t, err)
	assert.True(t, staged.Empty())
}

func TestResetSoft_KeepsWorkingTree(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 5, 9, 0, 7, 0, time.UTC)

	tr.writeFile("a.txt", "1\n")
	first := tr.commitAll("first", base)
	tr.writeFile("a.txt", "1\n2\n")
	tr.commitAll("second", base.Add(time.Hour))
	tr.writeFile("a.txt", "1\n2\n3\n")
	tr.commitAll("third", base.Add(2*time.Hour))

	require.NoError(t, tr.repo.ResetSoft(ctx, 2))

	head, err := tr.repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, head)
	assert.Equal(t, "1\n2\n3\n", tr.readFile("a.txt"))

	staged, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeStaged)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, staged.Paths())

	require.ErrorIs(t, tr.repo.ResetSoft(ctx, 3), gitlib.ErrNotEnoughHistory)
}

func TestResetSoft_RootCommitLeavesUnbornBranch(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()

	tr.writeFile("a.txt", "a\n")
	tr.commitAll("only", time.Now())

	require.NoError(t, tr.repo.ResetSoft(ctx, 1))

	_, err := tr.repo.Head(ctx)
	require.ErrorIs(t, err, gitlib.ErrUnbornHead)

	branch, err := tr.repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, branch)

	staged, err := tr.repo.CurrentChangeset(ctx, changeset.ScopeStaged)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, staged.Paths())
}

func TestLog(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 5, 9, 0, 7, 0, time.UTC)

	entries, err := tr.repo.Log(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for i, name := range []string{"a", "b", "c"} {
		tr.writeFile(name+".txt", name+"\n")
		tr.commitAll("add "+name, base.Add(time.Duration(i)*time.Minute))
	}

	entries, err = tr.repo.Log(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "add c", entries[0].Summary)
	assert.Equal(t, "add b", entries[1].Summary)

	_, err = tr.repo.Unpushed(ctx)
	require.ErrorIs(t, err, gitlib.ErrNoUpstream)
}
