package main

import (
	"os"

	"gossipchain/cmd/chaind/commands"
)

func main() {
	rootCmd := commands.RootCmd

	rootCmd.AddCommand(
		commands.VersionCmd,
		commands.NewRunCmd(),
		commands.NewInspectQuarantineCmd(),
	)

	// Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
