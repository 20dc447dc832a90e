package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	queryTimeout = 3 * time.Second

	settlementKeyConstraint = "credit_transactions_settlement_key"

	transactionColumns = `id, buyer_id, project_id, credit_amount, unit_price, total_amount, currency,
		stripe_payment_intent_id, stripe_session_id, transaction_reference, payment_status,
		reversed_at, created_at, updated_at`
)

// Repository is the transaction log. Writes take a caller-owned *sqlx.Tx so
// they commit atomically with the inventory and wallet updates.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindByKeyTx returns the transaction recorded for a settlement key, or nil
// when none exists.
func (r *Repository) FindByKeyTx(ctx context.Context, tx *sqlx.Tx, sessionID, paymentIntentID string) (*Transaction, error) {
	return findByKey(ctx, tx, sessionID, paymentIntentID)
}

// FindByKey is FindByKeyTx outside a transaction.
func (r *Repository) FindByKey(ctx context.Context, sessionID, paymentIntentID string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return findByKey(ctx2, r.db, sessionID, paymentIntentID)
}

func findByKey(ctx context.Context, q sqlx.QueryerContext, sessionID, paymentIntentID string) (*Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q, &t, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE stripe_session_id = $1 AND stripe_payment_intent_id = $2
	`, sessionID, paymentIntentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find by settlement key: %v", ErrInternal, err)
	}
	return &t, nil
}

// InsertTx records a new transaction. A unique violation on the settlement
// key is reported as ErrDuplicateSettlementKey; the surrounding transaction is
// aborted at that point and must be rolled back.
func (r *Repository) InsertTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO credit_transactions (
			id, buyer_id, project_id, credit_amount, unit_price, total_amount, currency,
			stripe_payment_intent_id, stripe_session_id, transaction_reference, payment_status,
			created_at, updated_at
		)
		VALUES (
			:id, :buyer_id, :project_id, :credit_amount, :unit_price, :total_amount, :currency,
			:stripe_payment_intent_id, :stripe_session_id, :transaction_reference, :payment_status,
			:created_at, :updated_at
		)
	`, t)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == settlementKeyConstraint {
			return ErrDuplicateSettlementKey
		}
		return fmt.Errorf("%w: insert transaction: %v", ErrInternal, err)
	}
	return nil
}

// LockByPaymentIntentTx loads the single transaction for a payment intent
// FOR UPDATE.
func (r *Repository) LockByPaymentIntentTx(ctx context.Context, tx *sqlx.Tx, paymentIntentID string) (*Transaction, error) {
	rows := make([]Transaction, 0, 2)
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE stripe_payment_intent_id = $1
		ORDER BY created_at
		LIMIT 2
		FOR UPDATE
	`, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock by payment intent: %v", ErrInternal, err)
	}
	switch len(rows) {
	case 0:
		return nil, ErrTransactionNotFound
	case 1:
		return &rows[0], nil
	default:
		return nil, ErrAmbiguousPaymentIntent
	}
}

// UpdateStatusTx overwrites the payment status. When reversedAt is set the
// reversal timestamp is recorded too; it is never cleared.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status, reversedAt *time.Time) (*Transaction, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var t Transaction
	err := tx.GetContext(ctx, &t, `
		UPDATE credit_transactions
		SET payment_status = $2,
		    reversed_at = COALESCE(reversed_at, $3),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+transactionColumns, id, string(status), reversedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: update status: %v", ErrInternal, err)
	}
	return &t, nil
}

// ListByBuyer returns a buyer's transactions newest first, at most limit rows.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	transactions := make([]Transaction, 0, limit)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE buyer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %v", ErrInternal, err)
	}
	return transactions, nil
}

// GetByReference returns the transaction with the given human-readable reference.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE transaction_reference = $1
	`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: get by reference: %v", ErrInternal, err)
	}
	return &t, nil
}
