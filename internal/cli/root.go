package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockgate/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Database   string
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// Resolved from the config file, when one is given.
	PoliciesPath string
	DefaultClass string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stockgate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stockgate",
		Short: "Stockgate - oversell-safe inventory reservations",
		Long:  "Atomic multi-item stock reservations with session checkout and durable per-key rate limiting, backed by SQLite.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.ConfigPath != "" {
				cfg, err := config.Load(opts.ConfigPath)
				if err != nil {
					return err
				}
				// An explicit --db wins over the config file.
				if !cmd.Root().PersistentFlags().Changed("db") {
					opts.Database = cfg.DB
				}
				opts.PoliciesPath = cfg.Policies
				opts.DefaultClass = cfg.DefaultClass
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "stockgate.db", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewReserveCommand(opts))
	cmd.AddCommand(NewReleaseCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))
	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewLimitCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
