package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "collab-service",
	Short: "Collaboration service: room coordination, shared editor state, call signaling",
	Long:  `HTTP + WebSocket API. Commands: api, migrate, token.`,
	RunE:  runAPI, // default: run API (same as "collab-service api")
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}
