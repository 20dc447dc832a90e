package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/metrics"
)

// StatusChange is the outcome of UpdateStatus.
type StatusChange struct {
	TransactionID uuid.UUID     `json:"transaction_id"`
	Reference     string        `json:"transaction_reference"`
	Previous      credit.Status `json:"previous_status"`
	Status        credit.Status `json:"payment_status"`
	Reversed      bool          `json:"reversed"`
}

// Reconciler applies later payment-status transitions to settled
// transactions. Moving into refunded or expired reverses the settlement's
// inventory and wallet effects once.
type Reconciler struct {
	store Store
	options
}

func NewReconciler(store Store, opts ...Option) *Reconciler {
	return &Reconciler{
		store:   store,
		options: buildOptions(opts),
	}
}

// UpdateStatus sets the payment status of the transaction paid by
// paymentIntentID.
func (r *Reconciler) UpdateStatus(ctx context.Context, paymentIntentID string, status credit.Status) (*StatusChange, error) {
	change, err := r.updateStatus(ctx, paymentIntentID, status)
	metrics.StatusUpdates.WithLabelValues(string(status), reconcileOutcome(err)).Inc()
	return change, err
}

func (r *Reconciler) updateStatus(ctx context.Context, paymentIntentID string, status credit.Status) (*StatusChange, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment intent id is required", ErrMissingSettlementData)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	l := logger.FromContext(ctx).With().
		Str("payment_intent_id", paymentIntentID).
		Str("status", string(status)).
		Logger()

	var (
		change  StatusChange
		updated *credit.Transaction
	)
	err := r.store.InTx(ctx, func(q Queries) error {
		t, err := q.LockTransactionByPaymentIntent(ctx, paymentIntentID)
		if err != nil {
			return fmt.Errorf("%w: payment intent %s", err, paymentIntentID)
		}
		change.Previous = t.PaymentStatus

		reverse := status.Reverses() && !t.IsReversed()
		if status.Reverses() && t.IsReversed() {
			l.Warn().Str("reference", t.Reference).Msg("transaction already reversed, writing status only")
		}
		if !status.Reverses() && t.IsReversed() {
			l.Warn().Str("reference", t.Reference).Msg("status change on reversed transaction, credits are not restored")
		}

		reversedAt := t.ReversedAt
		if reverse {
			now := r.now().UTC()
			if err := reverseSettlement(ctx, q, t, now); err != nil {
				return err
			}
			reversedAt = &now
		}

		updated, err = q.UpdateTransactionStatus(ctx, t.ID, status, reversedAt)
		if err != nil {
			return err
		}
		change.Reversed = reverse
		return nil
	})
	if err != nil {
		return nil, err
	}

	change.TransactionID = updated.ID
	change.Reference = updated.Reference
	change.Status = updated.PaymentStatus

	if change.Reversed {
		metrics.Reversals.Inc()
	}
	notifyStatusChanged(ctx, r.notifiers, updated, change.Previous, change.Reversed)

	l.Info().
		Str("reference", change.Reference).
		Str("previous_status", string(change.Previous)).
		Bool("reversed", change.Reversed).
		Msg("payment status updated")

	return &change, nil
}

// reverseSettlement undoes the inventory sale and the wallet credit of t.
// Rows are locked project first, then wallet, the same order Settle uses.
// An overdrawn wallet fails the unit and rolls the restore back.
func reverseSettlement(ctx context.Context, q Queries, t *credit.Transaction, now time.Time) error {
	if t.HasProject() {
		if _, err := q.RestoreSale(ctx, t.ProjectID.UUID, t.Credits()); err != nil {
			return fmt.Errorf("restore inventory for %s: %w", t.Reference, err)
		}
	}
	if _, err := q.DebitWallet(ctx, t.BuyerID, t.CreditAmount, now); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) || errors.Is(err, wallet.ErrWalletNotFound) {
			return fmt.Errorf("%w: %s needs %s credits", ErrReversalExceedsBalance, t.Reference, t.CreditAmount)
		}
		return err
	}
	return nil
}

func reconcileOutcome(err error) string {
	switch {
	case err == nil:
		return "updated"
	case errors.Is(err, ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, credit.ErrAmbiguousPaymentIntent):
		return "ambiguous"
	case errors.Is(err, ErrReversalExceedsBalance):
		return "reversal_exceeds_balance"
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrMissingSettlementData):
		return "invalid"
	default:
		return "error"
	}
}
