// Package commands implements the dispatch CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Task tracker for orders, entities, and other external references",
	Long: `Dispatch tracks units of work attached to external references.

Assigning a reference reconciles its tasks against the configured slot
table: one live task per slot, owned by the new assignee. Work queues
carry overdue tasks forward until they are completed or cancelled.

Configure storage, locking, and the digest schedule in dispatch.yaml.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./dispatch.yaml or ~/.config/dispatch/dispatch.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
}
