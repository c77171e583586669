package undo

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
)

// ErrPushed is returned when an undo would remove commits the upstream
// already has.
var ErrPushed = errors.New("undo would rewrite pushed commits")

// History lists the commits a session can be rebuilt from.
type History interface {
	UnpushedIDs(ctx context.Context) ([]string, error)
	RecentIDs(ctx context.Context, n int) ([]string, error)
}

// SessionFromHistory rebuilds a session for a process that did not make the
// commits itself. The session holds the commits missing upstream; a branch
// without upstream has pushed nothing, so its last n commits qualify. With
// force, the last n commits are taken even when some were pushed.
func SessionFromHistory(ctx context.Context, h History, n int, force bool) (*Session, error) {
	unpushed, err := h.UnpushedIDs(ctx)

	switch {
	case errors.Is(err, gitlib.ErrNoUpstream):
		force = true
	case err != nil:
		return nil, fmt.Errorf("list unpushed commits: %w", err)
	}

	ids := unpushed

	if n > len(unpushed) {
		if !force {
			return nil, fmt.Errorf("%w: %d of the last %d commits are unpushed", ErrPushed, len(unpushed), n)
		}

		ids, err = h.RecentIDs(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("list recent commits: %w", err)
		}
	}

	oldestFirst := slices.Clone(ids)
	slices.Reverse(oldestFirst)

	return NewSession(oldestFirst...), nil
}
