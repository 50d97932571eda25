package cli

import (
	"github.com/spf13/cobra"

	"stockgate/internal/reserve"
	"stockgate/internal/store"
)

// openStore opens the database named by the global --db flag.
// The caller owns the returned store and must Close it.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openCoordinator opens the store and wraps it in a coordinator.
func openCoordinator(opts *RootOptions) (*reserve.Coordinator, *store.Store, error) {
	st, err := openStore(opts)
	if err != nil {
		return nil, nil, err
	}
	return reserve.New(st), st, nil
}

// newFormatter builds an OutputFormatter writing to the command's streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
