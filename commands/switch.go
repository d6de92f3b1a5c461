package commands

import (
	"context"
	"io"

	"github.com/roasbeef/patchq/output"
	"github.com/spf13/cobra"
)

// NewSwitchCmd creates the switch command.
func NewSwitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch",
		Short: "Toggle between the base branch and its patch queue branch",
		Long: `Switch to the other side of the branch pair: from the base branch
to its patch queue branch, or back. The queue branch is created at
the upstream baseline when it does not exist yet.`,
		Example: `  # From main, jump onto development/main
  patchq switch

  # And back again
  patchq switch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSwitch(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func runSwitch(ctx context.Context, w io.Writer) error {
	rt := getRuntime(ctx)

	ctl, err := newController(ctx)
	if err != nil {
		return err
	}

	outcome, err := ctl.Switch(ctx)
	if err != nil {
		return err
	}

	if rt.JSONOut {
		return output.FormatSwitchJSON(w, outcome)
	}

	return output.FormatSwitch(w, outcome, rt.textOptions())
}
