package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stockgate/internal/reserve"
)

// ReserveOptions holds flags for the reserve command.
type ReserveOptions struct {
	*RootOptions
	ID         string
	MaxPerLine int64

	// Generator allows overriding the reservation ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Generator reserve.IDGenerator
}

// NewReserveCommand creates the reserve command.
func NewReserveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReserveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reserve <item=quantity>...",
		Short: "Atomically reserve stock for one or more items",
		Long: `Atomically reserve stock for one or more items. Either every line is
granted or none is; a shortfall on any item rejects the whole request
and leaves stock untouched.

Example:
  stockgate reserve sku-123=2 sku-456=1
  stockgate reserve --id order-42 sku-123=2`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReserve(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "reservation ID (default: generated UUIDv7)")
	cmd.Flags().Int64Var(&opts.MaxPerLine, "max-per-line", 0, "reject lines above this quantity (0 = no ceiling)")

	return cmd
}

func runReserve(opts *ReserveOptions, args []string, cmd *cobra.Command) error {
	items, err := parseItems(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid items", err)
	}

	// Per-line ceilings are caller policy, not a core invariant, so the
	// clamp lives here rather than in the coordinator.
	if opts.MaxPerLine > 0 {
		for _, it := range items {
			if it.Quantity > opts.MaxPerLine {
				msg := fmt.Sprintf("item %q quantity %d exceeds --max-per-line %d", it.Key, it.Quantity, opts.MaxPerLine)
				f := newFormatter(opts.RootOptions, cmd)
				_ = f.Error("invalid_quantity", msg, nil)
				return NewExitError(ExitFailure, "reservation rejected")
			}
		}
	}

	reservationID := opts.ID
	if reservationID == "" {
		gen := opts.Generator
		if gen == nil {
			gen = reserve.UUIDv7Generator{}
		}
		reservationID = gen.Generate()
	}

	co, st, err := openCoordinator(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	f := newFormatter(opts.RootOptions, cmd)
	f.VerboseLog("reserving %d line(s) under %s", len(items), reservationID)

	if err := co.Reserve(cmd.Context(), reservationID, items); err != nil {
		switch {
		case reserve.IsInvalidQuantity(err):
			_ = f.Error("invalid_quantity", err.Error(), nil)
			return WrapExitError(ExitFailure, "reservation rejected", err)
		case reserve.IsInsufficientStock(err):
			_ = f.Error("insufficient_stock", err.Error(), nil)
			return WrapExitError(ExitFailure, "reservation rejected", err)
		default:
			return WrapExitError(ExitCommandError, "failed to reserve", err)
		}
	}

	return f.Success(reservationID)
}

// parseItems parses item=quantity arguments into reservation items.
func parseItems(args []string) ([]reserve.Item, error) {
	items := make([]reserve.Item, 0, len(args))
	for _, arg := range args {
		key, qtyStr, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected item=quantity, got %q", arg)
		}
		qty, err := strconv.ParseInt(qtyStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q: %w", arg, err)
		}
		items = append(items, reserve.Item{Key: key, Quantity: qty})
	}
	return items, nil
}
