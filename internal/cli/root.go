package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/greenledger/credit-ledger/internal/app"
	"github.com/greenledger/credit-ledger/internal/config"
	"github.com/greenledger/credit-ledger/internal/pkg/database"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
)

var (
	verbose bool
	rootCmd *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "creditctl",
		Short: "Operate the carbon credit ledger",
		Long: `creditctl runs schema migrations and operator actions against the ledger database.

Connection settings come from the same environment variables as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logger.Init(logger.Config{Level: level, Environment: "development"})
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(transactionsCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// session is an open database plus the ledger wired on top of it.
type session struct {
	db     *sqlx.DB
	redis  *redis.Client
	ledger *app.Ledger
}

func openSession(ctx context.Context) (*session, error) {
	cfg := config.Load()

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		database.ClosePostgres(db)
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ledger, err := app.NewLedger(ctx, cfg, db, rdb)
	if err != nil {
		database.CloseRedis(rdb)
		database.ClosePostgres(db)
		return nil, err
	}
	return &session{db: db, redis: rdb, ledger: ledger}, nil
}

func (s *session) Close() {
	database.CloseRedis(s.redis)
	database.ClosePostgres(s.db)
}
