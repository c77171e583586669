package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/safeconv"
)

// UnstageAll resets the index to the HEAD tree, leaving the working tree
// untouched. On an unborn branch the index is emptied.
func (r *Repository) UnstageAll(_ context.Context) error {
	index, err := r.repo.Index()
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	tree, err := r.headTree()
	if err != nil {
		return err
	}

	if tree == nil {
		err = index.Clear()
	} else {
		defer tree.Free()

		err = index.ReadTree(tree)
	}

	if err != nil {
		return fmt.Errorf("reset index: %w", err)
	}

	err = index.Write()
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// Stage writes the given file states into the index. Content is stored as new
// blobs, so the working tree is never read or modified.
func (r *Repository) Stage(ctx context.Context, files []changeset.StagedFile) error {
	index, err := r.repo.Index()
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	for _, f := range files {
		if ctx.Err() != nil {
			return fmt.Errorf("stage: %w", ctx.Err())
		}

		err = r.stageOne(index, f)
		if err != nil {
			return err
		}
	}

	err = index.Write()
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

func (r *Repository) stageOne(index *git2go.Index, f changeset.StagedFile) error {
	if f.OldPath != "" && f.OldPath != f.Path {
		err := removeIfPresent(index, f.OldPath)
		if err != nil {
			return err
		}
	}

	if f.Delete {
		return removeIfPresent(index, f.Path)
	}

	oid, err := r.repo.CreateBlobFromBuffer(f.Content)
	if err != nil {
		return fmt.Errorf("write blob for %s: %w", f.Path, err)
	}

	mode := git2go.Filemode(f.Mode)
	if mode == 0 {
		mode = git2go.FilemodeBlob
	}

	err = index.Add(&git2go.IndexEntry{
		Path: f.Path,
		Mode: mode,
		Id:   oid,
		Size: safeconv.Truncate[uint32](uint64(len(f.Content))),
	})
	if err != nil {
		return fmt.Errorf("stage %s: %w", f.Path, err)
	}

	return nil
}

func removeIfPresent(index *git2go.Index, path string) error {
	if _, err := index.Find(path); err != nil {
		return nil //nolint:nilerr // nothing to remove
	}

	err := index.RemoveByPath(path)
	if err != nil {
		return fmt.Errorf("unstage %s: %w", path, err)
	}

	return nil
}
