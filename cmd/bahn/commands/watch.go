package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/lock"
	"github.com/Sumatoshi-tech/bahn/pkg/message"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
	"github.com/Sumatoshi-tech/bahn/pkg/session"
)

// minWatchSpread is the shortest window a watch flush schedules into.
const minWatchSpread = time.Minute

// metricsShutdownTimeout bounds the graceful stop of the metrics server.
const metricsShutdownTimeout = 5 * time.Second

// WatchCommand holds the flags of bahn watch.
type WatchCommand struct {
	g *Globals

	interval    time.Duration
	deferAll    bool
	dryRun      bool
	maxCommits  int
	metricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(g *Globals) *cobra.Command {
	wc := &WatchCommand{g: g}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Commit changes as they happen",
		Long: `Watch the working tree and turn the accumulated changes into commits
every interval. Commits of one flush are spread over the time the changes
were made in.

With --defer nothing is committed until the watch stops (Ctrl-C), and the
commits are spread over the whole session. On Unix, SIGUSR1 forces a flush.`,
		Args: cobra.NoArgs,
		RunE: wc.run,
	}

	cmd.Flags().DurationVar(&wc.interval, "interval", 0, "time between flushes (default from config, 30m)")
	cmd.Flags().BoolVar(&wc.deferAll, "defer", false, "commit everything once, when the watch stops")
	cmd.Flags().BoolVar(&wc.dryRun, "dry-run", false, "show the plan of each flush without committing")
	cmd.Flags().IntVar(&wc.maxCommits, "max-commits", 0, "stop after this many commits (0 = no limit)")
	cmd.Flags().StringVar(&wc.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /readyz on this address")

	return cmd
}

func (wc *WatchCommand) run(cmd *cobra.Command, _ []string) error {
	ws, err := wc.g.open(setupOptions{
		mode:       observability.ModeWatch,
		prometheus: wc.metricsAddr != "",
	})
	if err != nil {
		return err
	}
	defer ws.close()

	ctx := cmd.Context()

	if wc.metricsAddr != "" {
		srv, srvErr := observability.NewMetricsServer(wc.metricsAddr, ws.providers, func(ctx context.Context) error {
			_, headErr := ws.backend.HeadID(ctx)

			return headErr
		})
		if srvErr != nil {
			return srvErr
		}

		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()

			if closeErr := srv.Close(closeCtx); closeErr != nil {
				ws.logger.Warn("metrics server shutdown failed", "error", closeErr)
			}
		}()

		ws.logger.Info("serving metrics", "addr", srv.Addr())
	}

	held, err := lock.Acquire(ctx, ws.repo.GitDir())
	if err != nil {
		return err
	}

	defer func() { _ = held.Release() }()

	ignore, err := session.NewIgnore(append([]string{".git"}, ws.cfg.Watch.Ignore...)...)
	if err != nil {
		return err
	}

	watcher, err := session.NewWatcher(ws.repo.Path(), ignore, session.WithWatcherLogger(ws.logger))
	if err != nil {
		return err
	}
	defer watcher.Close()

	eng, base, err := wc.engine(ws)
	if err != nil {
		return err
	}

	interval := wc.interval
	if interval <= 0 {
		interval = ws.cfg.Watch.Interval
	}

	var runner *session.Runner

	flush := func(ctx context.Context, b session.Batch) (int, error) {
		return wc.flush(ctx, cmd, ws, eng, base, b, runner.Commits())
	}

	runner = session.NewRunner(session.NewBatchSession(nil), watcher, flush, session.RunnerOptions{
		Interval:   interval,
		Defer:      wc.deferAll,
		MaxCommits: wc.maxCommits,
	}, ws.logger)

	stopSignals := notifyFlush(ctx, runner.Trigger)
	defer stopSignals()

	ws.logger.Info("watching", "path", ws.repo.Path(), "interval", interval, "defer", wc.deferAll)

	err = runner.Run(ctx)

	return errors.Join(err, writeLine(cmd.OutOrStdout(), fmt.Sprintf("Watch finished, %d commits.", runner.Commits())))
}

// engine builds the engine and the plan options shared by every flush.
func (wc *WatchCommand) engine(ws *workspace) (*engine.Engine, engine.PlanOptions, error) {
	base, err := engine.ResolveOptions(ws.cfg, engine.Overrides{Scope: changeset.ScopeBoth.String()})
	if err != nil {
		return nil, engine.PlanOptions{}, err
	}

	opts := []engine.Option{
		engine.WithLogger(ws.logger),
		engine.WithTracer(ws.providers.Tracer),
		engine.WithMetrics(ws.red),
	}

	if !wc.dryRun {
		gen, genErr := message.New(ws.cfg.MessageSettings())
		if genErr != nil {
			return nil, engine.PlanOptions{}, genErr
		}

		opts = append(opts, engine.WithMessages(gen))
	}

	return engine.New(ws.backend, opts...), base, nil
}

// flush plans the pending changes into the window of b and commits them.
func (wc *WatchCommand) flush(
	ctx context.Context, cmd *cobra.Command, ws *workspace,
	eng *engine.Engine, opts engine.PlanOptions, b session.Batch, made int,
) (int, error) {
	start, window := b.Window()

	opts.Start = start
	opts.Spread = max(window, minWatchSpread)

	if wc.maxCommits > 0 {
		remaining := wc.maxCommits - made
		if opts.Target == 0 || opts.Target > remaining {
			opts.Target = remaining
		}
	}

	plan, err := eng.Plan(ctx, opts)
	if errors.Is(err, changeset.ErrNoChanges) {
		ws.logger.DebugContext(ctx, "touched paths carry no changes", "paths", len(b.Paths))

		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	out := cmd.OutOrStdout()

	if wc.dryRun {
		return 0, wc.g.renderer(out).Plan(out, render.NewPlanView(plan))
	}

	records, err := eng.Execute(ctx, plan)
	ws.commits.RecordRun(ctx, plan.Stats(len(records)))

	if len(records) > 0 {
		if renderErr := wc.g.renderer(out).Records(out, records); renderErr != nil {
			ws.logger.WarnContext(ctx, "render commits failed", "error", renderErr)
		}
	}

	return len(records), err
}
