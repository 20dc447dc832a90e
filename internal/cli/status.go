package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reconcile transaction payment status",
}

var statusSetCmd = &cobra.Command{
	Use:   "set <payment-intent-id> <status>",
	Short: "Set the payment status of a settled transaction",
	Long: `Set the payment status of the transaction settled for a payment intent.

Moving a transaction to refunded or expired reverses its credits exactly once.`,
	Args: cobra.ExactArgs(2),
	RunE: runStatusSet,
}

func init() {
	statusCmd.AddCommand(statusSetCmd)
}

func runStatusSet(cmd *cobra.Command, args []string) error {
	status, err := credit.ParseStatus(args[1])
	if err != nil {
		return fmt.Errorf("%q: %w", args[1], err)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	change, err := s.ledger.Reconciler.UpdateStatus(cmd.Context(), args[0], status)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s -> %s\n", change.Reference, change.Previous, change.Status)
	if change.Reversed {
		fmt.Println("Credits reversed.")
	}
	return nil
}
