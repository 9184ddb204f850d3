package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fasthost",
		Short: "Embeddable HTTP front end",
		Long: `fasthost serves route modules through a trie router, named hook
pipelines and a self-hosted listener with bounded concurrency.

Configuration is read from an optional JSON file, FASTHOST_ environment
variables (FASTHOST_HOST__CONCURRENCY=64) and command-line flags, in
increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		serveCmd(),
		routesCmd(),
		versionCmd(),
	)
	return cmd
}
