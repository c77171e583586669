// Package commands implements CLI command handlers for bahn.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/bahn/pkg/config"
	"github.com/Sumatoshi-tech/bahn/pkg/gitlib"
	"github.com/Sumatoshi-tech/bahn/pkg/observability"
	"github.com/Sumatoshi-tech/bahn/pkg/prompt"
	"github.com/Sumatoshi-tech/bahn/pkg/render"
	"github.com/Sumatoshi-tech/bahn/pkg/version"
)

// ErrConfirmationRequired is returned when a command needs confirmation
// but cannot ask for it.
var ErrConfirmationRequired = errors.New("confirmation required: rerun with --yes")

// envNoColor disables colored output when set to any value.
const envNoColor = "NO_COLOR"

// Globals holds the persistent flags shared by every command.
type Globals struct {
	ConfigPath string
	RepoPath   string
	Verbose    bool
	Quiet      bool
	NoColor    bool

	// confirm asks a yes/no question. Tests replace it.
	confirm func(ctx context.Context, question string, def bool) (bool, error)
}

// NewRootCommand creates the bahn command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&Globals{confirm: prompt.ConfirmTerminal})
}

func newRootCommand(g *Globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bahn",
		Short: "Split pending changes into ordered, time-scheduled commits",
		Long: `bahn decomposes the pending changes of a Git repository into a sequence
of small, logically ordered commits and spreads their timestamps over a
working session.

Commands:
  init      Write a starter config into the repository
  commit    Plan and create commits from pending changes
  undo      Remove the most recent commits
  status    Show branch state and pending changes by bucket
  watch     Commit changes as they happen
  push      Push the current branch with retries
  mcp       Serve bahn tools over the Model Context Protocol`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.ConfigPath, "config", "", "config file (default: .bahn.yaml in the repository, then ~/.config/bahn)")
	flags.StringVarP(&g.RepoPath, "repo", "C", ".", "path inside the repository to operate on")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&g.Quiet, "quiet", "q", false, "suppress informational logs")
	flags.BoolVar(&g.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		NewInitCommand(g),
		NewCommitCommand(g),
		NewUndoCommand(g),
		NewStatusCommand(g),
		NewWatchCommand(g),
		NewPushCommand(g),
		NewMCPCommand(g),
		NewVersionCommand(),
	)

	return rootCmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())

			return err
		},
	}
}

// telemetry bundles the observability providers of one command.
type telemetry struct {
	providers observability.Providers
	logger    *slog.Logger
	red       *observability.REDMetrics
	commits   *observability.CommitMetrics
}

// workspace is everything a command needs once the repository is open.
type workspace struct {
	*telemetry

	cfg     *config.Config
	repo    *gitlib.Repository
	backend *gitlib.Backend
}

// setupOptions tunes observability for one command.
type setupOptions struct {
	mode       observability.AppMode
	prometheus bool
	logOutput  io.Writer
}

// open loads the repository, its configuration and telemetry.
func (g *Globals) open(opts setupOptions) (*workspace, error) {
	repo, err := gitlib.OpenRepository(g.RepoPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(g.ConfigPath, repo.Path())
	if err != nil {
		repo.Free()

		return nil, err
	}

	tel, err := g.telemetry(cfg, opts)
	if err != nil {
		repo.Free()

		return nil, err
	}

	return &workspace{telemetry: tel, cfg: cfg, repo: repo, backend: gitlib.NewBackend(repo)}, nil
}

// telemetry initializes logging, tracing and metrics from cfg and the
// global flags.
func (g *Globals) telemetry(cfg *config.Config, opts setupOptions) (*telemetry, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case g.Verbose:
		level = slog.LevelDebug
	case g.Quiet:
		level = slog.LevelWarn
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = opts.mode
	obsCfg.OTLPEndpoint = cfg.OTel.Endpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.OTel.Headers)
	obsCfg.OTLPInsecure = cfg.OTel.Insecure
	obsCfg.Prometheus = opts.prometheus
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Log.JSON || opts.mode == observability.ModeMCP
	obsCfg.LogOutput = opts.logOutput

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, err
	}

	tel := &telemetry{providers: providers, logger: providers.Logger}

	tel.red, err = observability.NewREDMetrics(providers.Meter)
	if err == nil {
		tel.commits, err = observability.NewCommitMetrics(providers.Meter)
	}

	if err != nil {
		tel.shutdown()

		return nil, err
	}

	return tel, nil
}

// shutdown flushes pending telemetry.
func (t *telemetry) shutdown() {
	shutdownErr := t.providers.Shutdown(context.Background())
	if shutdownErr != nil {
		t.logger.Warn("observability shutdown failed", "error", shutdownErr)
	}
}

// close flushes telemetry and frees the repository.
func (ws *workspace) close() {
	ws.shutdown()
	ws.repo.Free()
}

// renderer builds a terminal renderer honoring --no-color and NO_COLOR.
func (g *Globals) renderer(w io.Writer) *render.Renderer {
	useColor := !g.NoColor && os.Getenv(envNoColor) == ""

	if f, ok := w.(*os.File); !ok || !prompt.IsTerminal(f) {
		useColor = false
	}

	return render.New(render.Options{Color: useColor})
}

// ask confirms question unless yes is set.
func (g *Globals) ask(ctx context.Context, yes bool, question string, def bool) (bool, error) {
	if yes {
		return true, nil
	}

	ok, err := g.confirm(ctx, question, def)
	if errors.Is(err, prompt.ErrNotInteractive) {
		return false, ErrConfirmationRequired
	}

	return ok, err
}
