package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ndireport.
// Invoked without a subcommand it runs an export.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ndireport",
		Short: "Export the endpoint inventory of a Nexus Dashboard Insights site",
		Long: `ndireport logs in to a Nexus Dashboard Insights controller, fetches every
endpoint of a site and writes them into a formatted spreadsheet named
endpoints_report_<YYYYMMDD_HHMMSS>.xlsx.

Running ndireport without a subcommand is the same as 'ndireport export'.
Connection settings come from .ndireport, NDI_* environment variables and flags.`,
		Version:       getVersion(),
		Args:          cobra.NoArgs,
		RunE:          runExportCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	addExportFlags(cmd)

	// Add subcommands
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
