package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
)

// Push defaults.
const (
	DefaultPushRetries    = 3
	DefaultPushMaxElapsed = 2 * time.Minute
)

// ErrNothingToPush is returned when the branch has no commits its upstream lacks.
var ErrNothingToPush = errors.New("nothing to push")

// Pusher pushes a branch to a remote.
type Pusher interface {
	Push(ctx context.Context, opts gitlib.PushOptions) error
}

// PushOptions configures Push.
type PushOptions struct {
	gitlib.PushOptions

	// Retries is the number of attempts. Zero uses DefaultPushRetries.
	Retries uint
	// MaxElapsed bounds the total time spent retrying.
	MaxElapsed time.Duration
	// InitialInterval overrides the first backoff interval when positive.
	InitialInterval time.Duration
	Logger          *slog.Logger
}

// Push pushes with exponential backoff. Credential failures are not retried.
func Push(ctx context.Context, pusher Pusher, opts PushOptions) error {
	retries := opts.Retries
	if retries == 0 {
		retries = DefaultPushRetries
	}

	maxElapsed := opts.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = DefaultPushMaxElapsed
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := backoff.NewExponentialBackOff()
	if opts.InitialInterval > 0 {
		policy.InitialInterval = opts.InitialInterval
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := pusher.Push(ctx, opts.PushOptions)
		if errors.Is(err, gitlib.ErrNoCredentials) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(retries),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.WarnContext(ctx, "push failed, retrying", "remote", opts.Remote, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("push to %s: %w", opts.Remote, err)
	}

	logger.InfoContext(ctx, "pushed", "remote", opts.Remote, "branch", opts.Branch)

	return nil
}

// PendingPusher is a Pusher that can list the commits a push would send.
type PendingPusher interface {
	Pusher
	UnpushedIDs(ctx context.Context) ([]string, error)
}

// PushPending pushes when the branch has commits its upstream lacks and
// returns how many there were. A branch without upstream is pushed as is and
// reports -1.
func PushPending(ctx context.Context, repo PendingPusher, opts PushOptions) (int, error) {
	ids, err := repo.UnpushedIDs(ctx)

	switch {
	case errors.Is(err, gitlib.ErrNoUpstream):
		return -1, Push(ctx, repo, opts)
	case err != nil:
		return 0, fmt.Errorf("list unpushed commits: %w", err)
	case len(ids) == 0:
		return 0, ErrNothingToPush
	}

	return len(ids), Push(ctx, repo, opts)
}
