package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
	"github.com/Sumatoshi-tech/bahn/pkg/lock"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
	"github.com/Sumatoshi-tech/bahn/pkg/undo"
)

// UndoCommand holds the flags of bahn undo.
type UndoCommand struct {
	g *Globals

	hard    bool
	yes     bool
	force   bool
	preview bool
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(g *Globals) *cobra.Command {
	uc := &UndoCommand{g: g}

	cmd := &cobra.Command{
		Use:   "undo [count]",
		Short: "Remove the most recent commits",
		Long: `Remove the last count commits (default 1) from the current branch.

The changes of the removed commits stay in the index, so running commit again
replays them. With --hard they are discarded. Commits the upstream already
has are never removed unless --force is given. --preview lists the commits
that would be removed and changes nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: uc.run,
	}

	cmd.Flags().BoolVar(&uc.hard, "hard", false, "discard the changes of the removed commits")
	cmd.Flags().BoolVarP(&uc.yes, "yes", "y", false, "undo without asking")
	cmd.Flags().BoolVar(&uc.force, "force", false, "allow removing pushed commits")
	cmd.Flags().BoolVar(&uc.preview, "preview", false, "list the commits that would be removed without removing them")

	return cmd
}

func (uc *UndoCommand) run(cmd *cobra.Command, args []string) error {
	count := 1

	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("%w: %q", undo.ErrUndoRange, args[0])
		}

		count = n
	}

	ws, err := uc.g.open(setupOptions{mode: observability.ModeCLI})
	if err != nil {
		return err
	}
	defer ws.close()

	ctx := cmd.Context()

	if uc.preview {
		return uc.showPreview(cmd, ws, count)
	}

	held, err := lock.Acquire(ctx, ws.repo.GitDir())
	if err != nil {
		return err
	}

	defer func() { _ = held.Release() }()

	session, err := undo.SessionFromHistory(ctx, ws.backend, count, uc.force)
	if err != nil {
		return err
	}

	question := fmt.Sprintf("Undo %d commits, keeping their changes staged?", count)
	if uc.hard {
		question = fmt.Sprintf("Undo %d commits and discard their changes?", count)
	}

	ok, err := uc.g.ask(ctx, uc.yes, question, !uc.hard)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if !ok {
		return writeLine(out, "Aborted, nothing was undone.")
	}

	removed, err := undo.NewManager(ws.backend, session, ws.logger).Undo(ctx, count, undo.Options{Hard: uc.hard})
	if err != nil {
		return err
	}

	ws.commits.RecordUndo(ctx, len(removed))

	return uc.g.renderer(out).Undone(out, removed, uc.hard)
}

// showPreview prints the commits undo would remove.
func (uc *UndoCommand) showPreview(cmd *cobra.Command, ws *workspace, count int) error {
	ctx := cmd.Context()

	session, err := undo.SessionFromHistory(ctx, ws.backend, count, uc.force)
	if err != nil {
		return err
	}

	ids, err := undo.NewManager(ws.backend, session, ws.logger).Preview(ctx, count)
	if err != nil {
		return err
	}

	history, err := ws.repo.Log(ctx, count)
	if err != nil {
		return err
	}

	byID := make(map[string]gitlib.LogEntry, len(history))
	for _, e := range history {
		byID[e.Hash.String()] = e
	}

	entries := make([]render.UndoEntry, len(ids))
	for i, id := range ids {
		e := byID[id]
		entries[i] = render.UndoEntry{ID: id, Time: e.Committer.When, Summary: e.Summary}
	}

	out := cmd.OutOrStdout()

	return uc.g.renderer(out).UndoPreview(out, entries, uc.hard)
}
