package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
)

func init() {
	sleepCmd.Flags().DurationVar(&sleepDuration, "duration", 0, "Sleep window length (default 8h)")
	sleepCmd.Flags().BoolVar(&sleepClear, "clear", false, "Clear the pet's sleep window instead")
	rootCmd.AddCommand(sleepCmd)
}

var (
	sleepDuration time.Duration
	sleepClear    bool
)

var sleepCmd = &cobra.Command{
	Use:   "sleep <user> <pet>",
	Short: "Start or clear a pet's sleep window",
	Args:  cobra.ExactArgs(2),
	RunE:  runSleep,
}

func runSleep(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if sleepClear {
		if err := d.Quests.ClearSleep(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s is awake.\n", args[1])
		return nil
	}

	if err := d.Quests.StartSleep(cmd.Context(), args[0], args[1], sleepDuration); err != nil {
		return err
	}
	fmt.Printf("%s is sleeping.\n", args[1])
	return nil
}
