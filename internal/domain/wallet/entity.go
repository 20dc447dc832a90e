package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is a buyer's aggregate credit position. It is created on the first
// settlement and afterwards only moved by settlements and reversals.
type Wallet struct {
	UserID            uuid.UUID       `db:"user_id" json:"user_id"`
	AvailableCredits  decimal.Decimal `db:"available_credits" json:"available_credits"`
	TotalPurchased    decimal.Decimal `db:"total_purchased" json:"total_purchased"`
	TotalAllocated    decimal.Decimal `db:"total_allocated" json:"total_allocated"`
	TotalSpent        decimal.Decimal `db:"total_spent" json:"total_spent"`
	LifetimeImpact    decimal.Decimal `db:"lifetime_impact" json:"lifetime_impact"`
	LastTransactionAt *time.Time      `db:"last_transaction_at" json:"last_transaction_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Empty is the wallet reported for a buyer who has never settled.
func Empty(userID uuid.UUID) *Wallet {
	return &Wallet{
		UserID:           userID,
		AvailableCredits: decimal.Zero,
		TotalPurchased:   decimal.Zero,
		TotalAllocated:   decimal.Zero,
		TotalSpent:       decimal.Zero,
		LifetimeImpact:   decimal.Zero,
	}
}

// Balanced reports whether available = purchased - allocated - spent.
func (w *Wallet) Balanced() bool {
	return w.AvailableCredits.Equal(w.TotalPurchased.Sub(w.TotalAllocated).Sub(w.TotalSpent))
}

// Credit applies a settlement to the in-memory wallet.
func (w *Wallet) Credit(credits decimal.Decimal, at time.Time) {
	w.AvailableCredits = w.AvailableCredits.Add(credits)
	w.TotalPurchased = w.TotalPurchased.Add(credits)
	w.LastTransactionAt = &at
	w.UpdatedAt = at
}

// CanDebit reports whether a reversal of credits keeps every counter
// non-negative.
func (w *Wallet) CanDebit(credits decimal.Decimal) bool {
	return w.AvailableCredits.GreaterThanOrEqual(credits) && w.TotalPurchased.GreaterThanOrEqual(credits)
}

// Debit undoes a settlement. Callers check CanDebit first.
func (w *Wallet) Debit(credits decimal.Decimal, at time.Time) {
	w.AvailableCredits = w.AvailableCredits.Sub(credits)
	w.TotalPurchased = w.TotalPurchased.Sub(credits)
	w.LastTransactionAt = &at
	w.UpdatedAt = at
}
