package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the patch queue",
		Long: `Show the branch pair, whether the patch queue branch exists, the
upstream baseline it builds on, and the patch series recorded in the
spec file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func runStatus(ctx context.Context, w io.Writer) error {
	rt := getRuntime(ctx)

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Status(ctx)
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatStatusJSON(w, outcome)
	}

	return output.FormatStatus(w, outcome, rt.textOptions())
}
