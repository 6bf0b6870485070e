package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
)

func init() {
	rootCmd.AddCommand(overviewCmd)
}

var overviewCmd = &cobra.Command{
	Use:   "overview <user>",
	Short: "Show a user's coins, streak, and pet levels",
	Args:  cobra.ExactArgs(1),
	RunE:  runOverview,
}

func runOverview(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	ov, err := d.Progress.Overview(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Coins:  %d\n", ov.Coins)
	fmt.Printf("Streak: %d\n", ov.Streak)

	if len(ov.Pets) == 0 {
		fmt.Println("No pets yet.")
		return nil
	}

	pets := make([]string, 0, len(ov.Pets))
	for pet := range ov.Pets {
		pets = append(pets, pet)
	}
	sort.Strings(pets)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PET\tCORRECT\tLEVEL\tTO NEXT")
	for _, pet := range pets {
		p := ov.Pets[pet]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", pet, p.TotalCorrect, p.Level, p.ToNext)
	}
	return w.Flush()
}
