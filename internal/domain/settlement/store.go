package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/project"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
)

// Queries are the ledger operations available inside one unit of work.
type Queries interface {
	// LockSettlementKey serialises units of work on the same idempotency key
	// until the unit ends.
	LockSettlementKey(ctx context.Context, sessionID, paymentIntentID string) error
	FindTransactionByKey(ctx context.Context, sessionID, paymentIntentID string) (*credit.Transaction, error)
	InsertTransaction(ctx context.Context, t *credit.Transaction) error
	LockTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*credit.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status credit.Status, reversedAt *time.Time) (*credit.Transaction, error)

	LockProject(ctx context.Context, id uuid.UUID) (*project.Project, error)
	ApplySale(ctx context.Context, id uuid.UUID, credits int64) (*project.Project, error)
	RestoreSale(ctx context.Context, id uuid.UUID, credits int64) (*project.Project, error)

	CreditWallet(ctx context.Context, buyerID uuid.UUID, credits decimal.Decimal, at time.Time) (*wallet.Wallet, error)
	DebitWallet(ctx context.Context, buyerID uuid.UUID, credits decimal.Decimal, at time.Time) (*wallet.Wallet, error)
}

// Store runs fn atomically: every write made through q commits together when
// fn returns nil and is discarded otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// SQLStore is the Postgres unit of work over the ledger repositories.
type SQLStore struct {
	db           *sqlx.DB
	projects     *project.Repository
	transactions *credit.Repository
	wallets      *wallet.Repository
}

func NewSQLStore(db *sqlx.DB, projects *project.Repository, transactions *credit.Repository, wallets *wallet.Repository) *SQLStore {
	return &SQLStore{
		db:           db,
		projects:     projects,
		transactions: transactions,
		wallets:      wallets,
	}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txQueries{tx: tx, store: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement tx: %w", err)
	}
	return nil
}

type txQueries struct {
	tx    *sqlx.Tx
	store *SQLStore
}

func (q *txQueries) LockSettlementKey(ctx context.Context, sessionID, paymentIntentID string) error {
	_, err := q.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sessionID+"|"+paymentIntentID)
	if err != nil {
		return fmt.Errorf("lock settlement key: %w", err)
	}
	return nil
}

func (q *txQueries) FindTransactionByKey(ctx context.Context, sessionID, paymentIntentID string) (*credit.Transaction, error) {
	return q.store.transactions.FindByKeyTx(ctx, q.tx, sessionID, paymentIntentID)
}

func (q *txQueries) InsertTransaction(ctx context.Context, t *credit.Transaction) error {
	return q.store.transactions.InsertTx(ctx, q.tx, t)
}

func (q *txQueries) LockTransactionByPaymentIntent(ctx context.Context, paymentIntentID string) (*credit.Transaction, error) {
	return q.store.transactions.LockByPaymentIntentTx(ctx, q.tx, paymentIntentID)
}

func (q *txQueries) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status credit.Status, reversedAt *time.Time) (*credit.Transaction, error) {
	return q.store.transactions.UpdateStatusTx(ctx, q.tx, id, status, reversedAt)
}

func (q *txQueries) LockProject(ctx context.Context, id uuid.UUID) (*project.Project, error) {
	return q.store.projects.LockTx(ctx, q.tx, id)
}

func (q *txQueries) ApplySale(ctx context.Context, id uuid.UUID, credits int64) (*project.Project, error) {
	return q.store.projects.ApplySaleTx(ctx, q.tx, id, credits)
}

func (q *txQueries) RestoreSale(ctx context.Context, id uuid.UUID, credits int64) (*project.Project, error) {
	return q.store.projects.RestoreSaleTx(ctx, q.tx, id, credits)
}

func (q *txQueries) CreditWallet(ctx context.Context, buyerID uuid.UUID, credits decimal.Decimal, at time.Time) (*wallet.Wallet, error) {
	return q.store.wallets.CreditTx(ctx, q.tx, buyerID, credits, at)
}

func (q *txQueries) DebitWallet(ctx context.Context, buyerID uuid.UUID, credits decimal.Decimal, at time.Time) (*wallet.Wallet, error) {
	return q.store.wallets.DebitTx(ctx, q.tx, buyerID, credits, at)
}
