// Package gitlib wraps libgit2 for the operations the commit engine needs:
// reading the changeset, staging line subsets, creating commits with chosen
// timestamps, resetting, walking history and pushing.
package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Constants for hash operations.
const (
	// HashSize is the size of a SHA-1 hash in bytes.
	HashSize = 20
	// ShortHashSize is the length of an abbreviated hex hash.
	ShortHashSize = 7
)

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ParseHash parses a full hex object id.
func ParseHash(hexStr string) (Hash, error) {
	oid, err := git2go.NewOid(hexStr)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash %q: %w", hexStr, err)
	}

	return HashFromOid(oid), nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	if oid != nil {
		copy(h[:], oid[:])
	}

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return h.ToOid().String()
}

// Short returns the abbreviated hex representation.
func (h Hash) Short() string {
	return h.String()[:ShortHashSize]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
