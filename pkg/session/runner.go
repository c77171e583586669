package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// FlushFunc turns one batch into commits and returns how many it made.
type FlushFunc func(ctx context.Context, b Batch) (int, error)

// Source feeds touched paths into a session until ctx is done.
type Source interface {
	Run(ctx context.Context, emit func(paths []string)) error
}

// RunnerOptions controls a watch loop.
type RunnerOptions struct {
	// Interval between timed flushes. Ignored when Defer is set.
	Interval time.Duration
	// Defer accumulates until the loop stops and flushes once, so the
	// commits spread over the whole session.
	Defer bool
	// MaxCommits stops the loop once this many commits were made. Zero
	// means no limit.
	MaxCommits int
}

// Runner drives a BatchSession from a Source and flushes it on a timer,
// on Trigger, and when the loop stops.
type Runner struct {
	session *BatchSession
	source  Source
	flush   FlushFunc
	opts    RunnerOptions
	logger  *slog.Logger
	trigger chan struct{}
	commits int
}

// NewRunner creates a Runner. A nil logger means slog.Default.
func NewRunner(session *BatchSession, source Source, flush FlushFunc, opts RunnerOptions, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		session: session,
		source:  source,
		flush:   flush,
		opts:    opts,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a flush as soon as possible.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Commits returns the number of commits made so far.
func (r *Runner) Commits() int {
	return r.commits
}

// Run watches until ctx is done or MaxCommits is reached, then flushes
// what is left. The final flush runs even though ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.session.Start(); err != nil {
		return err
	}

	defer r.session.Cancel()

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()

	sourceErr := make(chan error, 1)

	go func() {
		sourceErr <- r.source.Run(loopCtx, func(paths []string) {
			if err := r.session.Append(paths...); err != nil {
				r.logger.WarnContext(loopCtx, "dropped changes", "paths", len(paths), "error", err)

				return
			}

			r.logger.DebugContext(loopCtx, "changes pending", "paths", paths, "pending", r.session.Pending())
		})
	}()

	var tick <-chan time.Time

	if !r.opts.Defer && r.opts.Interval > 0 {
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()

		tick = ticker.C
	}

	for !r.limitReached() {
		select {
		case <-loopCtx.Done():
			return r.finish(ctx, stop, sourceErr)
		case err := <-sourceErr:
			if err != nil {
				return errors.Join(err, r.final(ctx))
			}

			return r.final(ctx)
		case <-tick:
			r.flushOnce(loopCtx)
		case <-r.trigger:
			r.flushOnce(loopCtx)
		}
	}

	r.logger.InfoContext(ctx, "commit limit reached", "commits", r.commits)

	return r.finish(ctx, stop, sourceErr)
}

func (r *Runner) finish(ctx context.Context, stop context.CancelFunc, sourceErr <-chan error) error {
	stop()

	err := <-sourceErr

	return errors.Join(err, r.final(ctx))
}

// final flushes the remainder with a context that outlives cancellation.
func (r *Runner) final(ctx context.Context) error {
	if r.limitReached() {
		if dropped := r.session.Pending(); dropped > 0 {
			r.logger.InfoContext(ctx, "left changes uncommitted", "paths", dropped)
		}

		return nil
	}

	_, err := r.flushOnce(context.WithoutCancel(ctx))

	return err
}

// flushOnce runs the flush function on whatever is pending. A failed batch
// goes back into the session.
func (r *Runner) flushOnce(ctx context.Context) (int, error) {
	b, err := r.session.Flush()
	if errors.Is(err, ErrEmptyBatch) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	n, err := r.flush(ctx, b)
	r.commits += n

	if err != nil {
		r.session.Restore(b)
		r.logger.WarnContext(ctx, "flush failed", "paths", len(b.Paths), "error", err)

		return n, err
	}

	r.logger.InfoContext(ctx, "flushed batch", "paths", len(b.Paths), "commits", n)

	return n, nil
}

func (r *Runner) limitReached() bool {
	return r.opts.MaxCommits > 0 && r.commits >= r.opts.MaxCommits
}
