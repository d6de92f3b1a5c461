package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/spf13/cobra"
)

// NewRebaseCmd creates the rebase command.
func NewRebaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebase",
		Short: "Rebase the patch queue branch onto the upstream baseline",
		Long: `Rebase the patch queue branch onto the upstream version tag from
the spec file. Run this after importing a new upstream version to
carry the queue forward.

The queue branch is created at the baseline first if it does not
exist yet. On conflicts the git rebase is left in place for manual
resolution.`,
		Example: `  # Carry the queue onto the current upstream version
  patchq rebase`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRebase(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func runRebase(ctx context.Context, w io.Writer) error {
	rt := getRuntime(ctx)

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Rebase(ctx)
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatRebaseJSON(w, outcome)
	}

	return output.FormatRebase(w, outcome, rt.textOptions())
}
