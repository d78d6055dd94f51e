package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func newRootCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "companion",
		Short: "A chat companion that speaks up while you work",
		Long: "companion watches what you are doing, decides when there is something\n" +
			"worth saying, and asks a local or hosted model to say it.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd.Context(), opts)
		},
	}
	opts.bind(cmd)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newCandidatesCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "companion %s (%s)\n", Version, License)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
