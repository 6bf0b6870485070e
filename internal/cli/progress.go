package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
)

func init() {
	progressCmd.Flags().StringVar(&progressAdventure, "adventure", "", "Adventure key to bucket the answers under")
	rootCmd.AddCommand(progressCmd)
}

var progressAdventure string

var progressCmd = &cobra.Command{
	Use:   "progress <user> <pet> <questions>",
	Short: "Record correctly answered questions for a pet",
	Args:  cobra.ExactArgs(3),
	RunE:  runProgress,
}

func runProgress(cmd *cobra.Command, args []string) error {
	questions, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("questions must be a number: %w", err)
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Progress.RecordProgress(cmd.Context(), args[0], args[1], questions, progressAdventure); err != nil {
		return err
	}

	fmt.Printf("Recorded %d questions for %s.\n", questions, args[1])
	return nil
}
