package changeset

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoChanges is the sentinel matched by NoChangesError.
var ErrNoChanges = errors.New("no changes")

// NoChangesError reports an empty changeset.
type NoChangesError struct {
	Scope Scope
}

func (e *NoChangesError) Error() string {
	return fmt.Sprintf("no %s changes to decompose", e.Scope)
}

// Unwrap returns ErrNoChanges.
func (e *NoChangesError) Unwrap() error { return ErrNoChanges }

// Source produces the changeset of a repository for a scope.
type Source interface {
	CurrentChangeset(ctx context.Context, scope Scope) (*Changeset, error)
}

// Ingest reads the changeset for scope from src. It fails with a
// NoChangesError when nothing changed.
func Ingest(ctx context.Context, src Source, scope Scope) (*Changeset, error) {
	cs, err := src.CurrentChangeset(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("read changeset: %w", err)
	}

	if cs.Empty() {
		return nil, &NoChangesError{Scope: scope}
	}

	cs.Scope = scope

	return cs, nil
}
