package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/roasbeef/patchq/queue"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	var (
		exportRev   string
		squashUntil string
		compress    int64
		noNumbers   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the patch queue branch as patch files",
		Long: `Export the commits on the patch queue branch as numbered patch
files in the packaging directory, and rewrite the spec file to apply
them in order.

Stale patches from the previous export are removed. The command
switches to the base branch first; run it from either side of the
branch pair.`,
		Example: `  # Export the whole queue
  patchq export

  # Export everything up to a commit, leaving later work out
  patchq export --rev development/main~2

  # Collapse pre-applied history into a single diff file
  patchq export --squash-until upstream-fixes:applied`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(
				cmd.Context(), cmd.OutOrStdout(), exportOptions{
					exportRev:   exportRev,
					squashUntil: squashUntil,
					compress:    compress,
					compressSet: cmd.Flags().Changed("compress"),
					noNumbers:   noNumbers,
				},
			)
		},
	}

	cmd.Flags().StringVar(
		&exportRev, "rev", "",
		"treeish to export up to instead of the queue head",
	)
	cmd.Flags().StringVar(
		&squashUntil, "squash-until", "",
		"collapse history up to this commit-ish into one diff",
	)
	cmd.Flags().Int64Var(
		&compress, "compress", 0,
		"gzip patches larger than this many bytes",
	)
	cmd.Flags().BoolVar(
		&noNumbers, "no-numbers", false,
		"drop the NNNN- ordering prefix from patch names",
	)

	return cmd
}

type exportOptions struct {
	exportRev   string
	squashUntil string
	compress    int64
	compressSet bool
	noNumbers   bool
}

func runExport(
	ctx context.Context, w io.Writer, opts exportOptions,
) error {

	rt := getRuntime(ctx)

	// Flag overrides beat the config file for this run only.
	if opts.squashUntil != "" {
		rt.Cfg.PatchExportSquashUntil = opts.squashUntil
	}
	// An explicit --compress wins even at zero, which turns
	// compression off for a config that enables it.
	if opts.compressSet {
		rt.Cfg.PatchExportCompress = opts.compress
	}
	if opts.noNumbers {
		numbered := false
		rt.Cfg.PatchNumbers = &numbered
	}

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Export(ctx, queue.ExportOptions{
		ExportRev: opts.exportRev,
	})
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatExportJSON(w, outcome)
	}

	return output.FormatExport(w, outcome, rt.textOptions())
}
