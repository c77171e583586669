package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/lock"
	"github.com/Sumatoshi-tech/bahn/pkg/message"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/orchestrator"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
)

// CommitCommand holds the flags of bahn commit.
type CommitCommand struct {
	g *Globals

	splitMode string
	target    int
	spread    string
	start     string
	staged    bool
	seed      uint64
	yes       bool
	dryRun    bool
	output    string
	chart     string
}

// commitOutput is the structured form of a commit run.
type commitOutput struct {
	Plan    render.PlanView `json:"plan"              yaml:"plan"`
	Commits []commitEntry   `json:"commits,omitempty" yaml:"commits,omitempty"`
}

type commitEntry struct {
	ID      string   `json:"id"      yaml:"id"`
	Time    string   `json:"time"    yaml:"time"`
	Message string   `json:"message" yaml:"message"`
	Files   []string `json:"files"   yaml:"files"`
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(g *Globals) *cobra.Command {
	cc := &CommitCommand{g: g}

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Split pending changes into scheduled commits",
		Long: `Analyze the pending changes, group them into logically ordered commits,
schedule their timestamps over a working session and create them after
confirmation.

Split modes:
  file   one commit per file group
  chunk  function and class sized commits (default)
  hunk   commits built from individual diff hunks`,
		Args: cobra.NoArgs,
		RunE: cc.run,
	}

	cmd.Flags().StringVar(&cc.splitMode, "split-mode", "", "split mode: file, chunk or hunk (default from config)")
	cmd.Flags().IntVarP(&cc.target, "target", "n", 0, "desired number of commits (0 = natural grouping)")
	cmd.Flags().StringVar(&cc.spread, "spread", "", "scheduling window, e.g. 2h, 90m or 1d (default: 2 to 4 hours)")
	cmd.Flags().StringVar(&cc.start, "start", "", "first commit time, YYYY-MM-DD HH:MM (default: now)")
	cmd.Flags().BoolVar(&cc.staged, "staged", false, "only consider staged changes")
	cmd.Flags().Uint64Var(&cc.seed, "seed", 0, "random seed for a reproducible schedule")
	cmd.Flags().BoolVarP(&cc.yes, "yes", "y", false, "create the commits without asking")
	cmd.Flags().BoolVar(&cc.dryRun, "dry-run", false, "show the plan without committing")
	cmd.Flags().StringVarP(&cc.output, "output", "o", render.FormatTable, "output format: table, yaml or json")
	cmd.Flags().StringVar(&cc.chart, "chart", "", "write an HTML chart of the schedule to this file")

	return cmd
}

func (cc *CommitCommand) run(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(cc.output)
	if err != nil {
		return err
	}

	ws, err := cc.g.open(setupOptions{mode: observability.ModeCLI})
	if err != nil {
		return err
	}
	defer ws.close()

	ctx := cmd.Context()

	if !cc.dryRun {
		held, lockErr := lock.Acquire(ctx, ws.repo.GitDir())
		if lockErr != nil {
			return lockErr
		}

		defer func() { _ = held.Release() }()
	}

	overrides := engine.Overrides{
		Mode:   cc.splitMode,
		Target: cc.target,
		Spread: cc.spread,
		Start:  cc.start,
	}

	if cc.staged {
		overrides.Scope = changeset.ScopeStaged.String()
	}

	if cmd.Flags().Changed("seed") {
		overrides.Seed = &cc.seed
	}

	opts, err := engine.ResolveOptions(ws.cfg, overrides)
	if err != nil {
		return err
	}

	engOpts := []engine.Option{
		engine.WithLogger(ws.logger),
		engine.WithTracer(ws.providers.Tracer),
		engine.WithMetrics(ws.red),
	}

	if !cc.dryRun {
		gen, genErr := message.New(ws.cfg.MessageSettings())
		if genErr != nil {
			return genErr
		}

		engOpts = append(engOpts, engine.WithMessages(gen))
	}

	eng := engine.New(ws.backend, engOpts...)

	out := cmd.OutOrStdout()

	plan, err := eng.Plan(ctx, opts)
	if errors.Is(err, changeset.ErrNoChanges) {
		return writeLine(out, "Nothing to commit.")
	}

	if err != nil {
		return err
	}

	view := render.NewPlanView(plan)

	if cc.chart != "" {
		if err := writeChart(cc.chart, view); err != nil {
			return err
		}
	}

	if cc.dryRun {
		return cc.show(out, format, commitOutput{Plan: view})
	}

	if format == render.FormatTable {
		if err := cc.g.renderer(out).Plan(out, view); err != nil {
			return err
		}
	}

	ok, err := cc.g.ask(ctx, cc.yes, fmt.Sprintf("Create %d commits?", len(plan.Commits)), true)
	if err != nil {
		return err
	}

	if !ok {
		return writeLine(out, "Aborted, nothing was committed.")
	}

	records, execErr := eng.Execute(ctx, plan)
	ws.commits.RecordRun(ctx, plan.Stats(len(records)))

	if format == render.FormatTable {
		err = cc.g.renderer(out).Records(out, records)
	} else {
		err = cc.show(out, format, commitOutput{Plan: view, Commits: entries(records)})
	}

	return errors.Join(execErr, err)
}

func (cc *CommitCommand) show(w io.Writer, format string, v commitOutput) error {
	if format == render.FormatTable {
		return cc.g.renderer(w).Plan(w, v.Plan)
	}

	return render.Encode(w, format, v)
}

func writeChart(path string, view render.PlanView) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}

	err = render.WriteScheduleChart(f, view)

	return errors.Join(err, f.Close())
}

func entries(records []orchestrator.CommitRecord) []commitEntry {
	out := make([]commitEntry, len(records))

	for i, r := range records {
		out[i] = commitEntry{
			ID:      r.ID,
			Time:    r.Time.Format("2006-01-02 15:04:05 -0700"),
			Message: r.Message,
			Files:   r.Files,
		}
	}

	return out
}

func writeLine(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)

	return err
}
