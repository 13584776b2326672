package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "genqueue",
		Short:         "Asynchronous generation job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		NewServeCommand(),
		NewGenerateCommand(),
		NewAwaitCommand(),
		NewTokenCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
