package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
)

func init() {
	rootCmd.AddCommand(questsCmd)
}

var questsCmd = &cobra.Command{
	Use:   "quests <user>",
	Short: "Show a user's per-pet quest states",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuests,
}

func runQuests(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	states, err := d.Quests.QuestStates(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Println("No quest state yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PET\tACTIVITY\tPROGRESS\tCOMPLETED\tCOOLDOWN UNTIL\tSLEEPING")
	for _, q := range states {
		cooldown := "-"
		if q.CooldownUntil != nil {
			cooldown = q.CooldownUntil.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%v\t%s\t%v\n",
			q.Pet, q.Activity, q.Progress, q.Target, q.Completed, cooldown, q.Sleeping)
	}
	return w.Flush()
}
