package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/spf13/cobra"
)

// NewApplyCmd creates the apply command.
func NewApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <patch>",
		Short: "Apply a single patch onto the patch queue branch",
		Long: `Apply one patch file as a commit on the patch queue branch,
switching to it (and creating it at the upstream baseline) first if
needed. Gzip and bzip2 compressed patches are accepted.

The commit author comes from the patch's mail header when it has
one, otherwise from the repository identity.`,
		Example: `  # Pull a fix from elsewhere into the queue
  patchq apply ~/fix-build.patch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}

func runApply(ctx context.Context, w io.Writer, patchPath string) error {
	rt := getRuntime(ctx)

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Apply(ctx, patchPath)
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatApplyJSON(w, outcome)
	}

	return output.FormatApply(w, outcome, rt.textOptions())
}
