package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
)

func init() {
	rootCmd.AddCommand(rolloverCmd)
}

var rolloverCmd = &cobra.Command{
	Use:   "rollover <user> [pet...]",
	Short: "Run one quest rollover pass for a user",
	Long: `Run one quest rollover pass. Listing pets makes the list
authoritative: missing sub-records are created and unlisted ones pruned.
Without pets, existing sub-records are processed and nothing is pruned.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRollover,
}

func runRollover(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	var pets []string
	if len(args) > 1 {
		pets = args[1:]
	}

	if err := d.Quests.Rollover(cmd.Context(), args[0], pets); err != nil {
		return err
	}
	fmt.Println("Rollover pass complete.")
	return nil
}
