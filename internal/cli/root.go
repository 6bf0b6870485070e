// Package cli implements the StoryPets command-line interface using Cobra.
// Subcommands operate directly on the local document store; `serve` starts
// the HTTP engine consumed by the reading app.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storypets",
	Short: "StoryPets — per-user reading progression engine",
	Long: `StoryPets tracks coins, pet levels, rotating quests, login streaks,
and sleep windows for the StoryPets reading app.

Run 'storypets serve' to start the engine API, or use the inspection
commands (overview, quests) against the local store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
