package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <session-id> <reservation-id>",
		Short: "Associate a reservation with a checkout session",
		Long: `Associate a reservation with a checkout session. Lines already bound
to a session keep their first binding; re-running the command is a
no-op.

Example:
  stockgate link sess-9 order-42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(rootOpts, args[0], args[1], cmd)
		},
	}
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <session-id>",
		Short: "Finalize all reserved lines for a session",
		Long: `Finalize all reserved lines linked to a session. Stock is not touched;
the decrement already happened at reservation time. Committing a session
with no reserved lines reports zero lines and succeeds, so redelivered
payment events are harmless.

Example:
  stockgate commit sess-9`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(rootOpts, args[0], cmd)
		},
	}
}

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-id>",
		Short: "Look up the reserved reservation for a session",
		Long: `Look up the ID of a still-reserved reservation linked to a session,
as payment capture does before charging.

Example:
  stockgate session sess-9`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(rootOpts, args[0], cmd)
		},
	}
}

func runLink(opts *RootOptions, sessionID, reservationID string, cmd *cobra.Command) error {
	co, st, err := openCoordinator(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := co.LinkToSession(cmd.Context(), sessionID, reservationID); err != nil {
		return WrapExitError(ExitCommandError, "failed to link session", err)
	}

	f := newFormatter(opts, cmd)
	return f.Success(fmt.Sprintf("linked %s -> %s", sessionID, reservationID))
}

func runCommit(opts *RootOptions, sessionID string, cmd *cobra.Command) error {
	co, st, err := openCoordinator(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	count, err := co.CommitBySession(cmd.Context(), sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to commit session", err)
	}

	f := newFormatter(opts, cmd)
	if opts.Format == "json" {
		return f.Success(map[string]int64{"committed_lines": count})
	}
	return f.Success(fmt.Sprintf("committed %d line(s) for %s", count, sessionID))
}

func runSession(opts *RootOptions, sessionID string, cmd *cobra.Command) error {
	co, st, err := openCoordinator(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	reservationID, ok, err := co.FindReservedReservationIDBySession(cmd.Context(), sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to look up session", err)
	}

	f := newFormatter(opts, cmd)
	if !ok {
		_ = f.Error("not_found", fmt.Sprintf("no reserved reservation for session %q", sessionID), nil)
		return NewExitError(ExitFailure, "session has no reserved reservation")
	}
	return f.Success(reservationID)
}
