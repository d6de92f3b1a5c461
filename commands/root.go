// Package commands contains the CLI command implementations.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/roasbeef/patchq/config"
	"github.com/roasbeef/patchq/output"
	"github.com/roasbeef/patchq/ui"
	"github.com/spf13/cobra"
)

// runtimeKey is the context key for the per-run state.
type runtimeKey struct{}

// Runtime holds the per-run state shared by all commands.
type Runtime struct {
	// WorkDir is the directory commands operate in. Empty means the
	// current directory.
	WorkDir string

	// JSONOut selects machine-readable output.
	JSONOut bool

	// Color enables ANSI styling on text output.
	Color bool

	// Cfg is the loaded tool configuration. Its TmpDir points at a
	// scratch directory private to this run.
	Cfg *config.Config

	// Log writes to stderr so stdout stays parseable.
	Log *log.Logger

	scratch string
}

// getRuntime retrieves the run state from context, or returns inert
// defaults.
func getRuntime(ctx context.Context) Runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(Runtime); ok {
		return rt
	}

	return Runtime{
		Cfg: config.Default(),
		Log: log.New(io.Discard),
	}
}

// textOptions derives the text output options for this run.
func (rt Runtime) textOptions() output.TextOptions {
	opts := output.DefaultTextOptions()
	opts.Color = rt.Color

	return opts
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var (
		workDir    string
		configPath string
		verbose    bool
		jsonOut    bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:     "patchq",
		Short:   "Keep packaging patches and a git branch in sync",
		Version: Version,
		Long: `Patchq maintains RPM packaging patches as commits on a patch queue
branch. The branch holds the patches applied on top of the upstream
baseline; the packaging directory holds them as numbered patch files
referenced from the spec file. Export and import convert between the
two representations without losing authorship.

Examples:
  # Turn the patch queue branch into patch files + spec references
  patchq export

  # Recreate the patch queue branch from the recorded series
  patchq import

  # Rebase the patch queue branch onto a new upstream baseline
  patchq rebase

  # Jump between the base branch and its patch queue branch
  patchq switch

  # Show where the queue stands
  patchq status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(
				workDir, configPath, verbose, jsonOut, noColor,
			)
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), runtimeKey{}, rt)
			cmd.SetContext(ctx)

			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&workDir, "dir", "C", "",
		"run as if started in this directory",
	)
	cmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"config file (default: .patchq.yaml in the working directory)",
	)
	cmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false,
		"enable debug logging",
	)
	cmd.PersistentFlags().BoolVar(
		&jsonOut, "json", false,
		"output in JSON format (for machine consumption)",
	)
	cmd.PersistentFlags().BoolVar(
		&noColor, "no-color", false,
		"disable ANSI colors in text output",
	)

	// Add subcommands. Cobra skips PersistentPostRun when a RunE
	// returns an error, so scratch cleanup hangs off each RunE
	// directly to cover failed runs too.
	for _, sub := range []*cobra.Command{
		NewExportCmd(),
		NewImportCmd(),
		NewRebaseCmd(),
		NewDropCmd(),
		NewSwitchCmd(),
		NewApplyCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	} {
		run := sub.RunE
		sub.RunE = func(c *cobra.Command, args []string) error {
			defer cleanupScratch(c.Context())
			return run(c, args)
		}
		cmd.AddCommand(sub)
	}

	return cmd
}

// newRuntime loads configuration, builds the logger, and carves out a
// scratch directory unique to this run.
func newRuntime(
	workDir, configPath string, verbose, jsonOut, noColor bool,
) (Runtime, error) {

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDir(workDir)
	}
	if err != nil {
		return Runtime{}, err
	}

	// Staging areas from concurrent runs must not collide, so each
	// run gets its own subdirectory of the configured tmp dir.
	base := cfg.TmpDir
	if base == "" {
		base = os.TempDir()
	}

	scratch := filepath.Join(base, "patchq-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create scratch dir: %w", err)
	}
	cfg.TmpDir = scratch

	return Runtime{
		WorkDir: workDir,
		JSONOut: jsonOut,
		Color:   !noColor && !jsonOut,
		Cfg:     cfg,
		Log:     logger,
		scratch: scratch,
	}, nil
}

// cleanupScratch removes the run's scratch directory, if one was made.
func cleanupScratch(ctx context.Context) {
	rt := getRuntime(ctx)
	if rt.scratch != "" {
		os.RemoveAll(rt.scratch)
	}
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		ui.Errorf("%v", err)
		os.Exit(1)
	}
}
