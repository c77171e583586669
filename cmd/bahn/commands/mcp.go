package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/config"
	"github.com/Sumatoshi-tech/bahn/pkg/mcp"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(g *Globals) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve bahn tools over the Model Context Protocol",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes bahn as tools that AI agents can discover and invoke:
  - bahn_plan:   plan the commits of pending changes without touching the repository
  - bahn_commit: plan and create the commits
  - bahn_undo:   remove the most recent commits
  - bahn_status: branch state and pending changes by bucket

Every tool takes the absolute path of a repository. Settings come from the
repository's .bahn.yaml unless --config names a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(g.ConfigPath, "")
			if err != nil {
				return err
			}

			if debug {
				g.Verbose = true
			}

			tel, err := g.telemetry(cfg, setupOptions{mode: observability.ModeMCP})
			if err != nil {
				return err
			}
			defer tel.shutdown()

			deps := mcp.ServerDeps{
				Logger:  tel.logger,
				Metrics: tel.red,
				Commits: tel.commits,
				Tracer:  tel.providers.Tracer,
			}

			// Without an explicit file each tool call reads the config of
			// the repository it targets.
			if g.ConfigPath != "" {
				deps.Config = cfg
			}

			return mcp.NewServer(deps).Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	return cmd
}
