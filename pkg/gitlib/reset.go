package gitlib

import (
	"context"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNotEnoughHistory is returned when a reset reaches past the root commit.
var ErrNotEnoughHistory = errors.New("not enough commits in history")

// ResetSoft moves the current branch back by n commits, keeping the index and
// the working tree. The removed changes end up staged.
func (r *Repository) ResetSoft(ctx context.Context, n int) error {
	return r.reset(ctx, n, git2go.ResetSoft)
}

// ResetHard moves the current branch back by n commits and discards the
// removed changes from both the index and the working tree.
func (r *Repository) ResetHard(ctx context.Context, n int) error {
	return r.reset(ctx, n, git2go.ResetHard)
}

func (r *Repository) reset(ctx context.Context, n int, mode git2go.ResetType) error {
	if n <= 0 {
		return nil
	}

	target, err := r.headCommit()
	if err != nil {
		return err
	}

	if target == nil {
		return ErrUnbornHead
	}

	for step := range n {
		if target.ParentCount() == 0 {
			target.Free()

			if step < n-1 {
				return ErrNotEnoughHistory
			}

			return r.resetToUnborn(ctx, mode)
		}

		parent := target.Parent(0)
		target.Free()

		if parent == nil {
			return ErrParentNotFound
		}

		target = parent
	}
	defer target.Free()

	var opts *git2go.CheckoutOptions
	if mode == git2go.ResetHard {
		opts = &git2go.CheckoutOptions{Strategy: git2go.CheckoutForce}
	}

	err = r.repo.ResetToCommit(target, mode, opts)
	if err != nil {
		return fmt.Errorf("reset to %s: %w", HashFromOid(target.Id()).Short(), err)
	}

	return nil
}

// resetToUnborn removes the root commit by deleting the branch reference,
// which leaves HEAD on an unborn branch with the index intact.
func (r *Repository) resetToUnborn(ctx context.Context, mode git2go.ResetType) error {
	if mode == git2go.ResetHard {
		return fmt.Errorf("hard reset past the root commit: %w", ErrNotEnoughHistory)
	}

	name, err := r.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	ref, err := r.repo.References.Lookup("refs/heads/" + name)
	if err != nil {
		return fmt.Errorf("lookup branch %s: %w", name, err)
	}
	defer ref.Free()

	err = ref.Delete()
	if err != nil {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}

	return nil
}
