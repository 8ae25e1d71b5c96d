package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped by the build.
var version = "0.1.0"

// Execute runs the root command.
func Execute() error {
	return buildRootCmd().Execute()
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessiond",
		Short: "Session daemon for local LLM inference",
		Long: "sessiond manages native inference sessions over HTTP: exclusive\n" +
			"model handles, NDJSON token streaming, LoRA adapters, prompt\n" +
			"caches, and per-session memory accounting.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd())
	root.AddCommand(buildVersionCmd())
	return root
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sessiond version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sessiond", version)
		},
	}
}
