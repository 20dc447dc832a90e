package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenledger/credit-ledger/internal/config"
	"github.com/greenledger/credit-ledger/internal/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.ClosePostgres(db)

	applied, err := database.Migrate(cmd.Context(), db)
	if err != nil {
		return err
	}

	if applied == 0 {
		fmt.Println("Schema is up to date.")
		return nil
	}
	fmt.Printf("Applied %d migration(s).\n", applied)
	return nil
}
