package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/recall/internal/config"
	"github.com/kailas-cloud/recall/internal/version"
)

func main() {
	var env string

	root := &cobra.Command{
		Use:           "recall",
		Short:         "Grounded question answering over captured text snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), env)
		},
	}
	root.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "config environment (local, dev, docker, prod)")

	root.AddCommand(serveCMD(&env), askCMD(&env), versionCMD())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
