package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	// Missing .env is fine, the environment may be configured by other means.
	_ = godotenv.Load()

	rootCmd.AddGroup(gameGroup)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddGroup(profileGroup)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCmd)
}

var rootCmd = &cobra.Command{
	Use:  "interrogame-cli",
	Long: `Command line utilities for Interrogame, the AI interrogation mystery`,
	Run: func(_ *cobra.Command, _ []string) {
		// Do Stuff Here
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// getenv reads key and falls back to def when unset or empty.
func getenv(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}
