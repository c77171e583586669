package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
)

// NewPushCommand creates the push command.
func NewPushCommand(g *Globals) *cobra.Command {
	var (
		remote string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the current branch with retries",
		Long: `Push the current branch to its remote, retrying transient failures with
exponential backoff. HTTPS remotes read a token from ` + gitlib.TokenEnv + `; SSH
remotes use the running ssh-agent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := g.open(setupOptions{mode: observability.ModeCLI})
			if err != nil {
				return err
			}
			defer ws.close()

			if remote == "" {
				remote = ws.cfg.Push.Remote
			}

			branch, err := ws.repo.CurrentBranch(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			n, err := engine.PushPending(cmd.Context(), ws.backend, engine.PushOptions{
				PushOptions: gitlib.PushOptions{Remote: remote, Branch: branch, Force: force},
				Retries:     ws.cfg.Push.Retries,
				Logger:      ws.logger,
			})
			if errors.Is(err, engine.ErrNothingToPush) {
				return writeLine(out, "Nothing to push.")
			}

			if err != nil {
				return err
			}

			if n < 0 {
				return writeLine(out, fmt.Sprintf("Pushed %s to %s.", branch, remote))
			}

			return writeLine(out, fmt.Sprintf("Pushed %d commits on %s to %s.", n, branch, remote))
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote to push to (default from config, origin)")
	cmd.Flags().BoolVar(&force, "force", false, "force the push, for example after undo")

	return cmd
}
