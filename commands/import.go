package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/roasbeef/patchq/queue"
	"github.com/spf13/cobra"
)

// NewImportCmd creates the import command.
func NewImportCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create the patch queue branch from the recorded series",
		Long: `Create the patch queue branch on top of the upstream baseline and
apply the series recorded in the spec file as one commit per patch.

Patch mail headers become the commit author; patches without headers
fall back to the packager from the spec, then to the repository
identity. A failure anywhere rolls the branch back completely.`,
		Example: `  # Build the queue branch from the spec's series
  patchq import

  # Throw away the existing queue branch and rebuild it
  patchq import --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), force)
		},
	}

	cmd.Flags().BoolVar(
		&force, "force", false,
		"recreate the queue branch even if it exists",
	)

	return cmd
}

func runImport(ctx context.Context, w io.Writer, force bool) error {
	rt := getRuntime(ctx)

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Import(ctx, queue.ImportOptions{Force: force})
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatImportJSON(w, outcome)
	}

	return output.FormatImport(w, outcome, rt.textOptions())
}
