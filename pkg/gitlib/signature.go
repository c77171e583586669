package gitlib

import (
	"errors"
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNoIdentity is returned when neither an override nor git config provide
// a commit identity.
var ErrNoIdentity = errors.New("no commit identity configured (set user.name and user.email)")

// Signature represents a git signature (author/committer).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func signatureFrom(sig *git2go.Signature) Signature {
	return Signature{Name: sig.Name, Email: sig.Email, When: sig.When}
}

// signature returns the commit identity stamped with when.
func (r *Repository) signature(when time.Time) (*git2go.Signature, error) {
	if r.identity != nil {
		return &git2go.Signature{Name: r.identity.Name, Email: r.identity.Email, When: when}, nil
	}

	sig, err := r.repo.DefaultSignature()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoIdentity, err)
	}

	return &git2go.Signature{Name: sig.Name, Email: sig.Email, When: when}, nil
}
