package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/changeset"
	"github.com/Sumatoshi-tech/bahn/pkg/engine"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(g *Globals) *cobra.Command {
	var (
		staged   bool
		unstaged bool
		output   string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show branch state and pending changes by bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := render.ParseFormat(output)
			if err != nil {
				return err
			}

			scope := changeset.ScopeBoth

			switch {
			case staged:
				scope = changeset.ScopeStaged
			case unstaged:
				scope = changeset.ScopeUnstaged
			}

			ws, err := g.open(setupOptions{mode: observability.ModeCLI})
			if err != nil {
				return err
			}
			defer ws.close()

			rules, err := ws.cfg.Rules()
			if err != nil {
				return err
			}

			report, err := engine.Status(cmd.Context(), ws.backend, scope, rules)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if format != render.FormatTable {
				return render.Encode(out, format, report)
			}

			return g.renderer(out).Status(out, report)
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "only show staged changes")
	cmd.Flags().BoolVar(&unstaged, "unstaged", false, "only show changes not yet staged")
	cmd.Flags().StringVarP(&output, "output", "o", render.FormatTable, "output format: table, yaml or json")
	cmd.MarkFlagsMutuallyExclusive("staged", "unstaged")

	return cmd
}
