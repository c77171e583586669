package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/config"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
)

// ErrUnknownConfigFormat is returned for an init --format outside yaml and toml.
var ErrUnknownConfigFormat = errors.New("unknown config format")

// NewInitCommand creates the init command.
func NewInitCommand(g *Globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .bahn config into the repository",
		Long: `Write a .bahn.yaml (or .bahn.toml) holding every default setting into the
root of the repository, creating the repository first when the directory is
not inside one. An existing config file is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains([]string{"yaml", "toml"}, format) {
				return fmt.Errorf("%w: %q", ErrUnknownConfigFormat, format)
			}

			out := cmd.OutOrStdout()

			repo, err := gitlib.OpenRepository(g.RepoPath)
			if errors.Is(err, gitlib.ErrNotRepository) {
				repo, err = gitlib.InitRepository(g.RepoPath)
				if err == nil {
					err = writeLine(out, "Initialized git repository in "+repo.Path())
				}
			}

			if err != nil {
				return err
			}
			defer repo.Free()

			if existing := config.ExistingFile(repo.Path()); existing != "" {
				return writeLine(out, "Config file already exists: "+existing)
			}

			path := filepath.Join(repo.Path(), ".bahn."+format)
			if err := config.WriteDefault(path); err != nil {
				return err
			}

			return writeLine(out, "Created "+path)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "config format: yaml or toml")

	return cmd
}
