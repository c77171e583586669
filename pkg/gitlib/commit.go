package gitlib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/bahn/pkg/safeconv"
)

// ErrParentNotFound is returned when the requested parent commit is not found.
var ErrParentNotFound = errors.New("parent commit not found")

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author.
func (c *Commit) Author() Signature {
	return signatureFrom(c.commit.Author())
}

// Committer returns the commit committer.
func (c *Commit) Committer() Signature {
	return signatureFrom(c.commit.Committer())
}

// Message returns the commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// Summary returns the first line of the message.
func (c *Commit) Summary() string {
	summary, _, _ := strings.Cut(strings.TrimSpace(c.commit.Message()), "\n")

	return summary
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return safeconv.Must[int](c.commit.ParentCount())
}

// ParentHash returns the hash of the nth parent.
func (c *Commit) ParentHash(n int) (Hash, error) {
	if n >= c.NumParents() {
		return Hash{}, ErrParentNotFound
	}

	return HashFromOid(c.commit.ParentId(safeconv.Must[uint](n))), nil
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit}, nil
}

// Commit records the current index as a new commit on top of HEAD, with the
// given author and committer times.
func (r *Repository) Commit(_ context.Context, message string, authorTime, committerTime time.Time) (Hash, error) {
	author, err := r.signature(authorTime)
	if err != nil {
		return Hash{}, err
	}

	committer, err := r.signature(committerTime)
	if err != nil {
		return Hash{}, err
	}

	index, err := r.repo.Index()
	if err != nil {
		return Hash{}, fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	treeID, err := index.WriteTree()
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	tree, err := r.repo.LookupTree(treeID)
	if err != nil {
		return Hash{}, fmt.Errorf("lookup tree: %w", err)
	}
	defer tree.Free()

	parent, err := r.headCommit()
	if err != nil {
		return Hash{}, err
	}

	var parents []*git2go.Commit
	if parent != nil {
		defer parent.Free()

		parents = append(parents, parent)
	}

	oid, err := r.repo.CreateCommit("HEAD", author, committer, message, tree, parents...)
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(oid), nil
}
