package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const walletColumns = `user_id, available_credits, total_purchased, total_allocated, total_spent,
	lifetime_impact, last_transaction_at, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the buyer's wallet or ErrWalletNotFound.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := r.db.GetContext(ctx, &w, `SELECT `+walletColumns+` FROM user_wallets WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// CreditTx adds credits to available and purchased, creating the wallet on
// first use. The upsert row-locks the wallet until tx ends.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, credits decimal.Decimal, at time.Time) (*Wallet, error) {
	if !credits.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		INSERT INTO user_wallets (user_id, available_credits, total_purchased, last_transaction_at, created_at, updated_at)
		VALUES ($1, $2, $2, $3, $3, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET available_credits = user_wallets.available_credits + EXCLUDED.available_credits,
		    total_purchased = user_wallets.total_purchased + EXCLUDED.total_purchased,
		    last_transaction_at = EXCLUDED.last_transaction_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+walletColumns, userID, credits, at)
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}
	return &w, nil
}

// DebitTx reverses a settlement's credit. The guard leaves the row untouched
// when the buyer no longer holds enough available credits.
func (r *Repository) DebitTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, credits decimal.Decimal, at time.Time) (*Wallet, error) {
	if !credits.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		UPDATE user_wallets
		SET available_credits = available_credits - $2,
		    total_purchased = total_purchased - $2,
		    last_transaction_at = $3,
		    updated_at = $3
		WHERE user_id = $1 AND available_credits >= $2 AND total_purchased >= $2
		RETURNING `+walletColumns, userID, credits, at)
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM user_wallets WHERE user_id = $1)`, userID); err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	if !exists {
		return nil, ErrWalletNotFound
	}
	return nil, ErrInsufficientFunds
}
