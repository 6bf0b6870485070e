package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
)

func init() {
	petCmd.AddCommand(petNameCmd)
	rootCmd.AddCommand(petCmd)
}

var petCmd = &cobra.Command{
	Use:   "pet",
	Short: "Manage a user's pets",
}

var petNameCmd = &cobra.Command{
	Use:   "name <user> <pet> <name>",
	Short: "Set a pet's display name",
	Args:  cobra.ExactArgs(3),
	RunE:  runPetName,
}

func runPetName(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Progress.SetPetName(cmd.Context(), args[0], args[1], args[2]); err != nil {
		return err
	}
	fmt.Printf("%s is now called %q.\n", args[1], args[2])
	return nil
}
