package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
)

// ErrConflicted is returned when the index holds unresolved merge conflicts.
var ErrConflicted = errors.New("index has unresolved conflicts")

// CurrentChangeset reads the changes selected by scope and builds their hunks.
// Renames are detected by similarity, untracked files count as added.
func (r *Repository) CurrentChangeset(ctx context.Context, scope changeset.Scope) (*changeset.Changeset, error) {
	diff, err := r.diffForScope(scope)
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("count deltas: %w", err)
	}

	cs := &changeset.Changeset{Scope: scope, Files: make([]*changeset.FileChange, 0, numDeltas)}

	for i := range numDeltas {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read changeset: %w", ctx.Err())
		}

		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("read delta %d: %w", i, deltaErr)
		}

		fc, buildErr := r.fileChange(delta, scope)
		if buildErr != nil {
			return nil, buildErr
		}

		if fc != nil {
			cs.Files = append(cs.Files, fc)
		}
	}

	return cs, nil
}

func (r *Repository) diffForScope(scope changeset.Scope) (*git2go.Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	opts.Flags |= git2go.DiffIncludeUntracked | git2go.DiffRecurseUntracked

	index, err := r.repo.Index()
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	if index.HasConflicts() {
		return nil, ErrConflicted
	}

	tree, err := r.headTree()
	if err != nil {
		return nil, err
	}

	if tree != nil {
		defer tree.Free()
	}

	var diff *git2go.Diff

	switch scope {
	case changeset.ScopeStaged:
		diff, err = r.repo.DiffTreeToIndex(tree, index, &opts)
	case changeset.ScopeUnstaged:
		diff, err = r.repo.DiffIndexToWorkdir(index, &opts)
	default:
		diff, err = r.repo.DiffTreeToWorkdirWithIndex(tree, &opts)
	}

	if err != nil {
		return nil, fmt.Errorf("diff %s changes: %w", scope, err)
	}

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		diff.Free()

		return nil, fmt.Errorf("get find options: %w", err)
	}

	findOpts.Flags |= git2go.DiffFindRenames | git2go.DiffFindForUntracked

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		diff.Free()

		return nil, fmt.Errorf("find renames: %w", err)
	}

	return diff, nil
}

func (r *Repository) fileChange(delta git2go.DiffDelta, scope changeset.Scope) (*changeset.FileChange, error) {
	var status changeset.Status

	switch delta.Status {
	case git2go.DeltaAdded, git2go.DeltaUntracked, git2go.DeltaCopied:
		status = changeset.StatusAdded
	case git2go.DeltaDeleted:
		status = changeset.StatusDeleted
	case git2go.DeltaRenamed:
		status = changeset.StatusRenamed
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		status = changeset.StatusModified
	case git2go.DeltaConflicted:
		return nil, fmt.Errorf("%w: %s", ErrConflicted, delta.NewFile.Path)
	default:
		return nil, nil //nolint:nilnil // unmodified and ignored entries carry no change
	}

	if git2go.Filemode(delta.NewFile.Mode) == git2go.FilemodeCommit ||
		git2go.Filemode(delta.OldFile.Mode) == git2go.FilemodeCommit {
		return nil, nil //nolint:nilnil // submodule pointers are left alone
	}

	var oldContent, newContent []byte

	var err error

	if status != changeset.StatusAdded {
		oldContent, err = r.blobContent(delta.OldFile.Oid)
		if err != nil {
			return nil, fmt.Errorf("read old %s: %w", delta.OldFile.Path, err)
		}
	}

	mode := uint32(delta.NewFile.Mode)

	if status == changeset.StatusDeleted {
		mode = uint32(delta.OldFile.Mode)
	} else {
		newContent, err = r.newSideContent(delta.NewFile, scope)
		if err != nil {
			return nil, fmt.Errorf("read new %s: %w", delta.NewFile.Path, err)
		}
	}

	oldPath := ""
	if status == changeset.StatusRenamed {
		oldPath = delta.OldFile.Path
	}

	return changeset.NewFileChange(delta.NewFile.Path, oldPath, status, mode, oldContent, newContent), nil
}

func (r *Repository) newSideContent(file git2go.DiffFile, scope changeset.Scope) ([]byte, error) {
	if scope == changeset.ScopeStaged {
		return r.blobContent(file.Oid)
	}

	full := filepath.Join(r.path, filepath.FromSlash(file.Path))

	if git2go.Filemode(file.Mode) == git2go.FilemodeLink {
		target, err := os.Readlink(full)
		if err != nil {
			return nil, fmt.Errorf("read link: %w", err)
		}

		return []byte(target), nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

func (r *Repository) blobContent(oid *git2go.Oid) ([]byte, error) {
	if oid == nil || oid.IsZero() {
		return nil, nil
	}

	blob, err := r.repo.LookupBlob(oid)
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}
	defer blob.Free()

	return blob.Contents(), nil
}
