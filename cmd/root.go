package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"devstrap/internal/logger"
)

// debug toggles diagnostic logging, wired to the global --debug flag.
var debug bool

// rootCmd is the base command for the devstrap CLI.
var rootCmd = &cobra.Command{
	Use:   "devstrap",
	Short: "Portable developer environment provisioning",

	// Initialize the logger before any subcommand runs.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(debug)
	},
}

// Execute registers global flags and runs the CLI. The process exits
// non-zero only when a command returns an error, which in practice means the
// run could not start at all: the missing-component preflight failed or the
// destination layout could not be prepared. Per-tool installation failures
// are reported in the run summary and still exit zero.
func Execute() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
