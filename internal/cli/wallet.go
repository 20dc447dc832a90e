package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect buyer wallets",
}

var walletShowCmd = &cobra.Command{
	Use:   "show <email>",
	Short: "Show the wallet of a buyer",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletShow,
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Inspect buyer transactions",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list <email>",
	Short: "List the most recent transactions of a buyer",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransactionsList,
}

var listLimit int

func init() {
	walletCmd.AddCommand(walletShowCmd)
	transactionsCmd.AddCommand(transactionsListCmd)

	transactionsListCmd.Flags().IntVarP(&listLimit, "limit", "n", credit.DefaultListLimit, "Maximum number of transactions")
}

func runWalletShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	buyer, err := s.ledger.Users.GetByEmail(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w, err := wallet.NewService(s.ledger.Wallets).Get(cmd.Context(), buyer.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Buyer:      %s (%s)\n", buyer.Email, buyer.ID)
	fmt.Printf("Available:  %s\n", w.AvailableCredits.String())
	fmt.Printf("Purchased:  %s\n", w.TotalPurchased.String())
	fmt.Printf("Allocated:  %s\n", w.TotalAllocated.String())
	fmt.Printf("Spent:      %s\n", w.TotalSpent.String())
	if w.LastTransactionAt != nil {
		fmt.Printf("Last:       %s\n", w.LastTransactionAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func runTransactionsList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	buyer, err := s.ledger.Users.GetByEmail(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	txs, err := credit.NewService(s.ledger.Transactions).ListForBuyer(cmd.Context(), buyer.ID, listLimit)
	if err != nil {
		return err
	}

	if len(txs) == 0 {
		fmt.Println("No transactions.")
		return nil
	}
	for _, t := range txs {
		fmt.Printf("  %-24s  %-10s  %8d credits  %s %s\n",
			t.Reference, t.PaymentStatus, t.Credits(), t.TotalAmount.StringFixed(2), t.Currency)
	}
	return nil
}
