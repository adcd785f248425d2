// Command feedbackd serves the feedback account API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "feedbackd",
		Short:         "Feedback account and session service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (YAML); FEEDBACK_* env vars override it")

	root.AddCommand(
		newServeCmd(&configFile),
		newCreateAdminCmd(&configFile),
		newBenchCmd(&configFile),
	)
	return root
}
