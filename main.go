package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "quick-task",
	Short: "Freelance task marketplace: bidding, assignment and payment release",
	Long: `quick-task runs the task marketplace as a modular monolith.

Owners post tasks, freelancers bid on them, the owner selects a bid, the
assignee marks the work complete and the owner releases payment. Every
change is pushed to websocket subscribers and, when NATS is configured,
forwarded to a JetStream stream.

With no subcommand the HTTP server is started (same as "serve").`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (env vars override it)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
