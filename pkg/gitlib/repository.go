package gitlib

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors for repository state.
var (
	// ErrBareRepository is returned for repositories without a working tree.
	ErrBareRepository = errors.New("bare repositories are not supported")
	// ErrUnbornHead is returned when HEAD points to a branch without commits.
	ErrUnbornHead = errors.New("HEAD has no commits yet")
	// ErrDetachedHead is returned when HEAD does not point to a branch.
	ErrDetachedHead = errors.New("HEAD is detached")
	// ErrNotRepository is returned when no repository contains the path.
	ErrNotRepository = errors.New("not a git repository")
)

// Repository wraps a libgit2 repository with a working tree.
type Repository struct {
	repo     *git2go.Repository
	path     string
	identity *Signature
}

// OpenRepository opens the repository containing path, searching parent
// directories the way git does.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepositoryExtended(path, 0, "")
	if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
		return nil, fmt.Errorf("open repository %s: %w", path, ErrNotRepository)
	}

	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	if repo.IsBare() {
		repo.Free()

		return nil, fmt.Errorf("open repository %s: %w", path, ErrBareRepository)
	}

	return &Repository{repo: repo, path: strings.TrimSuffix(repo.Workdir(), "/")}, nil
}

// InitRepository creates an empty repository with a working tree at path.
func InitRepository(path string) (*Repository, error) {
	repo, err := git2go.InitRepository(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", path, err)
	}

	return &Repository{repo: repo, path: strings.TrimSuffix(repo.Workdir(), "/")}, nil
}

// Path returns the working tree root.
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the path of the .git directory.
func (r *Repository) GitDir() string {
	return strings.TrimSuffix(r.repo.Path(), "/")
}

// SetIdentity overrides the name and email used for new commits. Without it
// the repository's user.name and user.email settings are used.
func (r *Repository) SetIdentity(name, email string) {
	r.identity = &Signature{Name: name, Email: email}
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points to.
func (r *Repository) Head(_ context.Context) (Hash, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}

	if unborn {
		return Hash{}, ErrUnbornHead
	}

	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// CurrentBranch returns the short name of the checked out branch. It works on
// unborn branches too.
func (r *Repository) CurrentBranch(_ context.Context) (string, error) {
	ref, err := r.repo.References.Lookup("HEAD")
	if err != nil {
		return "", fmt.Errorf("lookup HEAD: %w", err)
	}
	defer ref.Free()

	target := ref.SymbolicTarget()
	if !strings.HasPrefix(target, "refs/heads/") {
		return "", ErrDetachedHead
	}

	return strings.TrimPrefix(target, "refs/heads/"), nil
}

// headCommit returns the HEAD commit, or nil on an unborn branch.
func (r *Repository) headCommit() (*git2go.Commit, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	if unborn {
		return nil, nil //nolint:nilnil // unborn HEAD has no commit
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	commit, err := r.repo.LookupCommit(ref.Target())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return commit, nil
}

// headTree returns the tree of the HEAD commit, or nil on an unborn branch.
func (r *Repository) headTree() (*git2go.Tree, error) {
	commit, err := r.headCommit()
	if err != nil || commit == nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}

	return tree, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}
