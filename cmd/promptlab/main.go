// Package main provides the promptlab CLI: an HTTP server that fans one
// prompt out to several models, and a terminal compare command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Persistent flags.
var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promptlab",
		Short: "Send one prompt to several models and compare the answers",
		Long: `promptlab dispatches a prompt to multiple OpenRouter models in parallel
and reports each model's response, latency, token count and estimated cost.

  promptlab serve                 Run the HTTP API
  promptlab compare <prompt>      Compare models from the terminal
  promptlab models                List the model catalog`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./promptlab.json, ~/.promptlab/config.json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug|info|warn|error)")

	root.AddCommand(serveCmd(), compareCmd(), modelsCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promptlab %s\n", version)
		},
	}
}
