package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"stockgate/internal/reserve"
)

// NewStockCommand creates the stock command group.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and set item stock levels",
	}

	cmd.AddCommand(newStockSetCommand(rootOpts))
	cmd.AddCommand(newStockGetCommand(rootOpts))

	return cmd
}

func newStockSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <item> <stock>",
		Short: "Set an item's stock to an absolute value",
		Long: `Set an item's stock to an absolute non-negative value, creating the
item if it does not exist.

Example:
  stockgate stock set sku-123 40`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stockSet(rootOpts, args[0], args[1], cmd)
		},
	}
}

func newStockGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <item>...",
		Short: "Read current stock for one or more items",
		Long: `Read current stock for one or more items. Items with no inventory
row report a stock of 0.

Example:
  stockgate stock get sku-123 sku-456`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stockGet(rootOpts, args, cmd)
		},
	}
}

func stockSet(opts *RootOptions, itemKey, stockArg string, cmd *cobra.Command) error {
	stock, err := strconv.ParseInt(stockArg, 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid stock %q", stockArg), err)
	}

	co, st, err := openCoordinator(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	f := newFormatter(opts, cmd)
	if err := co.SetStock(cmd.Context(), itemKey, stock); err != nil {
		if reserve.IsInvalidQuantity(err) {
			_ = f.Error("invalid_quantity", err.Error(), nil)
			return WrapExitError(ExitFailure, "stock rejected", err)
		}
		return WrapExitError(ExitCommandError, "failed to set stock", err)
	}

	return f.Success(fmt.Sprintf("%s = %d", itemKey, stock))
}

func stockGet(opts *RootOptions, itemKeys []string, cmd *cobra.Command) error {
	co, st, err := openCoordinator(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	stocks, err := co.GetStocks(cmd.Context(), itemKeys)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stocks", err)
	}

	f := newFormatter(opts, cmd)
	if opts.Format == "json" {
		return f.Success(stocks)
	}

	keys := make([]string, 0, len(stocks))
	for k := range stocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k, stocks[k])
	}
	return nil
}
