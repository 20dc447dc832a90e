package credit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one settlement in the transaction log. Everything except
// PaymentStatus, ReversedAt and UpdatedAt is immutable once inserted; rows are
// never deleted.
type Transaction struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	BuyerID               uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	ProjectID             uuid.NullUUID   `db:"project_id" json:"project_id"`
	CreditAmount          decimal.Decimal `db:"credit_amount" json:"credit_amount"`
	UnitPrice             decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalAmount           decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency              string          `db:"currency" json:"currency"`
	StripePaymentIntentID string          `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	StripeSessionID       string          `db:"stripe_session_id" json:"stripe_session_id"`
	Reference             string          `db:"transaction_reference" json:"transaction_reference"`
	PaymentStatus         Status          `db:"payment_status" json:"payment_status"`
	ReversedAt            *time.Time      `db:"reversed_at" json:"reversed_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// Credits returns the whole-number credit quantity of the transaction.
func (t *Transaction) Credits() int64 {
	return t.CreditAmount.IntPart()
}

// IsReversed reports whether the inventory and wallet effects were undone.
func (t *Transaction) IsReversed() bool {
	return t.ReversedAt != nil
}

// HasProject reports whether the settlement drew from a project's inventory.
// A transaction without a project is a balance top-up.
func (t *Transaction) HasProject() bool {
	return t.ProjectID.Valid
}

// UnitPriceOf derives the per-credit price, rounded to six places.
func UnitPriceOf(total decimal.Decimal, credits int64) decimal.Decimal {
	if credits <= 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(credits), 6)
}
