package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/storypets/storypets/internal/daemon"
	"github.com/storypets/storypets/internal/domain"
)

func init() {
	coinsCmd.AddCommand(coinsDeductCmd)
	rootCmd.AddCommand(coinsCmd)
}

var coinsCmd = &cobra.Command{
	Use:   "coins <user>",
	Short: "Show a user's coin balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoins,
}

func runCoins(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	ov, err := d.Progress.Overview(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d coins\n", ov.Coins)
	return nil
}

var coinsDeductCmd = &cobra.Command{
	Use:   "deduct <user> <amount>",
	Short: "Deduct coins from a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE:  runCoinsDeduct,
}

func runCoinsDeduct(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	ok, remaining, err := d.Progress.DeductCoins(cmd.Context(), args[0], amount)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("Balance was below %d and is now 0.\n", amount)
		return domain.ErrInsufficientCoins
	}
	fmt.Printf("Deducted %d coins, %d remaining.\n", amount, remaining)
	return nil
}
