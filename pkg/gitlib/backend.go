package gitlib

import (
	"context"
	"errors"
	"time"
)

// Backend exposes a Repository to the engine with commit ids as strings.
type Backend struct {
	*Repository
}

// NewBackend wraps repo.
func NewBackend(repo *Repository) *Backend {
	return &Backend{Repository: repo}
}

// Commit records the index as a new commit and returns its id.
func (b *Backend) Commit(ctx context.Context, message string, authorTime, committerTime time.Time) (string, error) {
	hash, err := b.Repository.Commit(ctx, message, authorTime, committerTime)
	if err != nil {
		return "", err
	}

	return hash.String(), nil
}

// HeadID returns the id of the HEAD commit, or an empty string on an unborn
// branch.
func (b *Backend) HeadID(ctx context.Context) (string, error) {
	hash, err := b.Head(ctx)
	if err != nil {
		if errors.Is(err, ErrUnbornHead) {
			return "", nil
		}

		return "", err
	}

	return hash.String(), nil
}

// UnpushedIDs returns the ids of commits not on the upstream, newest first.
func (b *Backend) UnpushedIDs(ctx context.Context) ([]string, error) {
	entries, err := b.Unpushed(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Hash.String()
	}

	return ids, nil
}

// RecentIDs returns up to n ids along the first-parent chain from HEAD,
// newest first. These are the commits ResetSoft(n) would remove.
func (b *Backend) RecentIDs(ctx context.Context, n int) ([]string, error) {
	hash, err := b.Head(ctx)
	if errors.Is(err, ErrUnbornHead) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var ids []string

	for len(ids) < n {
		ids = append(ids, hash.String())

		commit, err := b.LookupCommit(ctx, hash)
		if err != nil {
			return nil, err
		}

		parent, err := commit.ParentHash(0)
		commit.Free()

		if errors.Is(err, ErrParentNotFound) {
			break
		}

		if err != nil {
			return nil, err
		}

		hash = parent
	}

	return ids, nil
}
