package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewReleaseCommand creates the release command.
func NewReleaseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <reservation-id>",
		Short: "Release a reservation and restore its stock",
		Long: `Release a reservation, restoring the stock of every line still held.
Releasing an unknown or already-released reservation is a no-op, so the
command is safe to run on redelivered cancellation events.

Example:
  stockgate release order-42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(rootOpts, args[0], cmd)
		},
	}
}

func runRelease(opts *RootOptions, reservationID string, cmd *cobra.Command) error {
	co, st, err := openCoordinator(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := co.Release(cmd.Context(), reservationID); err != nil {
		return WrapExitError(ExitCommandError, "failed to release", err)
	}

	f := newFormatter(opts, cmd)
	return f.Success(fmt.Sprintf("released %s", reservationID))
}
