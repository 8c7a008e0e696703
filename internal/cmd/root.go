package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/formgate/formgate/internal/server"
)

var globalConfig server.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "formgate",
	Short:        "HTTP proxy that re-encodes form bodies for reliable replay",
	SilenceUsage: true,
}

func Execute() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&globalConfig.AlternateConfigDir, "state-path", "", "Path to store state; empty to use default system paths")

	rootCmd.AddCommand(newRunCommand().cmd)
	rootCmd.AddCommand(newDeployCommand().cmd)
	rootCmd.AddCommand(newRemoveCommand().cmd)
	rootCmd.AddCommand(newListCommand().cmd)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
