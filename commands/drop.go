package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/spf13/cobra"
)

// NewDropCmd creates the drop command.
func NewDropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete the patch queue branch",
		Long: `Delete the patch queue branch belonging to the current base
branch. When run from the queue branch itself, the base branch is
checked out first.

The exported patch files are untouched; import recreates the branch
from them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDrop(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func runDrop(ctx context.Context, w io.Writer) error {
	rt := getRuntime(ctx)

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Drop(ctx)
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatDropJSON(w, outcome)
	}

	return output.FormatDrop(w, outcome, rt.textOptions())
}
