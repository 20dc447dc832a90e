package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/credit-ledger/internal/config"
	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/project"
	"github.com/greenledger/credit-ledger/internal/domain/settlement"
	"github.com/greenledger/credit-ledger/internal/domain/user"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
	"github.com/greenledger/credit-ledger/internal/pkg/storage"
)

// Ledger holds the wired repositories and engines shared by the API server
// and the operator CLI.
type Ledger struct {
	Users        user.Repository
	Projects     *project.Repository
	Transactions *credit.Repository
	Wallets      *wallet.Repository

	Engine     *settlement.Engine
	Reconciler *settlement.Reconciler
}

// NewLedger builds the settlement stack on top of an open database.
// rdb may be nil, in which case ledger events are not published.
func NewLedger(ctx context.Context, cfg *config.Config, db *sqlx.DB, rdb *redis.Client) (*Ledger, error) {
	l := &Ledger{
		Users:        user.NewRepository(db),
		Projects:     project.NewRepository(db),
		Transactions: credit.NewRepository(db),
		Wallets:      wallet.NewRepository(db),
	}

	notifiers, err := buildNotifiers(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	store := settlement.NewSQLStore(db, l.Projects, l.Transactions, l.Wallets)
	l.Engine = settlement.NewEngine(store, l.Users, settlement.WithNotifiers(notifiers...))
	l.Reconciler = settlement.NewReconciler(store, settlement.WithNotifiers(notifiers...))
	return l, nil
}

func buildNotifiers(ctx context.Context, cfg *config.Config, rdb *redis.Client) ([]settlement.Notifier, error) {
	var notifiers []settlement.Notifier
	if rdb != nil {
		notifiers = append(notifiers, settlement.NewEventPublisher(rdb, cfg.EventsChannel))
	}

	if !cfg.ReceiptsEnabled() {
		return notifiers, nil
	}

	store, err := receiptStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return append(notifiers, settlement.NewReceiptArchive(store, cfg.ReceiptsPrefix)), nil
}

func receiptStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.ReceiptsBucket != "" {
		s3, err := storage.NewS3Storage(ctx, storage.Config{
			Bucket:    cfg.ReceiptsBucket,
			Region:    cfg.ReceiptsRegion,
			Endpoint:  cfg.ReceiptsEndpoint,
			AccessKey: cfg.ReceiptsAccessKey,
			SecretKey: cfg.ReceiptsSecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("receipt bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.ReceiptsBucket).Msg("Archiving receipts to object storage")
		return s3, nil
	}

	local, err := storage.NewLocalStorage(cfg.ReceiptsDir)
	if err != nil {
		return nil, fmt.Errorf("receipt dir: %w", err)
	}
	log.Info().Str("dir", cfg.ReceiptsDir).Msg("Archiving receipts to local disk")
	return local, nil
}
