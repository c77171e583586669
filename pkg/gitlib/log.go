package gitlib

import (
	"context"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNoUpstream is returned when the current branch tracks no remote branch.
var ErrNoUpstream = errors.New("branch has no upstream")

// LogEntry is one commit of the history.
type LogEntry struct {
	Hash      Hash
	Summary   string
	Author    Signature
	Committer Signature
}

// Log returns up to limit commits reachable from HEAD, newest first.
// A limit of zero or less returns the whole history.
func (r *Repository) Log(ctx context.Context, limit int) ([]LogEntry, error) {
	return r.walk(ctx, limit, nil)
}

// Unpushed returns the commits on the current branch that its upstream does
// not contain, newest first.
func (r *Repository) Unpushed(ctx context.Context) ([]LogEntry, error) {
	name, err := r.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		return nil, fmt.Errorf("lookup branch %s: %w", name, err)
	}
	defer branch.Free()

	upstream, err := branch.Upstream()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoUpstream, name)
	}
	defer upstream.Free()

	return r.walk(ctx, 0, upstream.Target())
}

func (r *Repository) walk(ctx context.Context, limit int, hide *git2go.Oid) ([]LogEntry, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	if unborn {
		return nil, nil
	}

	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTopological | git2go.SortTime)

	err = walk.PushHead()
	if err != nil {
		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	if hide != nil {
		err = walk.Hide(hide)
		if err != nil {
			return nil, fmt.Errorf("hide upstream: %w", err)
		}
	}

	var entries []LogEntry

	err = walk.Iterate(func(commit *git2go.Commit) bool {
		wrapped := &Commit{commit: commit}
		entries = append(entries, LogEntry{
			Hash:      wrapped.Hash(),
			Summary:   wrapped.Summary(),
			Author:    wrapped.Author(),
			Committer: wrapped.Committer(),
		})

		return ctx.Err() == nil && (limit <= 0 || len(entries) < limit)
	})
	if err != nil {
		return nil, fmt.Errorf("revwalk iterate: %w", err)
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("walk history: %w", ctx.Err())
	}

	return entries, nil
}
