package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "retention",
	Short: "Operator tools for conversation retention",
	Long: `Runs the conversation retention sweep outside the HTTP server.
Database and broker settings are read from the environment (.env supported).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
