package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/user"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/metrics"
)

// BuyerResolver maps a checkout email to exactly one buyer.
type BuyerResolver interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// Result identifies the transaction a settlement produced or found.
type Result struct {
	TransactionID uuid.UUID     `json:"transaction_id"`
	Reference     string        `json:"transaction_reference"`
	PaymentStatus credit.Status `json:"payment_status"`
	Duplicate     bool          `json:"duplicate"`
}

func resultOf(t *credit.Transaction, duplicate bool) *Result {
	return &Result{
		TransactionID: t.ID,
		Reference:     t.Reference,
		PaymentStatus: t.PaymentStatus,
		Duplicate:     duplicate,
	}
}

type options struct {
	notifiers []Notifier
	now       func() time.Time
}

// Option configures an Engine or Reconciler.
type Option func(*options)

// WithNotifiers registers post-commit side effects.
func WithNotifiers(n ...Notifier) Option {
	return func(o *options) { o.notifiers = append(o.notifiers, n...) }
}

// WithClock overrides the settlement clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Engine turns completed payments into inventory, transaction and wallet
// changes committed as one unit.
type Engine struct {
	store  Store
	buyers BuyerResolver
	options
}

func NewEngine(store Store, buyers BuyerResolver, opts ...Option) *Engine {
	return &Engine{
		store:   store,
		buyers:  buyers,
		options: buildOptions(opts),
	}
}

// Settle records a completed payment exactly once per (session, payment
// intent). A redelivery returns the recorded transaction with Duplicate set
// and changes nothing.
func (e *Engine) Settle(ctx context.Context, event PaymentEvent) (*Result, error) {
	start := time.Now()
	res, err := e.settle(ctx, event)
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())
	metrics.Settlements.WithLabelValues(settleOutcome(res, err)).Inc()
	return res, err
}

func (e *Engine) settle(ctx context.Context, event PaymentEvent) (*Result, error) {
	order, err := event.Validate()
	if err != nil {
		return nil, err
	}

	l := logger.FromContext(ctx).With().
		Str("session_id", order.SessionID).
		Str("payment_intent_id", order.PaymentIntentID).
		Logger()

	buyer, err := e.buyers.GetByEmail(ctx, order.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) || errors.Is(err, user.ErrEmailEmpty) {
			return nil, fmt.Errorf("%w: %q", ErrBuyerNotFound, order.Email)
		}
		return nil, fmt.Errorf("resolve buyer: %w", err)
	}

	var projectID uuid.NullUUID
	if order.HasProject() {
		id, err := order.ParseProjectID()
		if err != nil {
			return nil, err
		}
		projectID = uuid.NullUUID{UUID: id, Valid: true}
	}

	var (
		recorded *credit.Transaction
		credited *wallet.Wallet
	)
	err = e.store.InTx(ctx, func(q Queries) error {
		if err := q.LockSettlementKey(ctx, order.SessionID, order.PaymentIntentID); err != nil {
			return err
		}

		existing, err := q.FindTransactionByKey(ctx, order.SessionID, order.PaymentIntentID)
		if err != nil {
			return err
		}
		if existing != nil {
			recorded = existing
			return ErrDuplicateSettlement
		}

		if projectID.Valid {
			p, err := q.LockProject(ctx, projectID.UUID)
			if err != nil {
				return fmt.Errorf("%w: %s", err, projectID.UUID)
			}
			if !p.CanSell(order.Credits) {
				return fmt.Errorf("%w: project %s has %d, requested %d",
					ErrInsufficientInventory, p.ID, p.CreditsAvailable, order.Credits)
			}
			if _, err := q.ApplySale(ctx, p.ID, order.Credits); err != nil {
				return err
			}
		}

		now := e.now().UTC()
		t := &credit.Transaction{
			ID:                    uuid.New(),
			BuyerID:               buyer.ID,
			ProjectID:             projectID,
			CreditAmount:          decimal.NewFromInt(order.Credits),
			UnitPrice:             credit.UnitPriceOf(order.Amount, order.Credits),
			TotalAmount:           order.Amount,
			Currency:              order.Currency,
			StripePaymentIntentID: order.PaymentIntentID,
			StripeSessionID:       order.SessionID,
			Reference:             credit.NewReference(now, order.SessionID),
			PaymentStatus:         order.Status,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := q.InsertTransaction(ctx, t); err != nil {
			return err
		}

		w, err := q.CreditWallet(ctx, buyer.ID, t.CreditAmount, now)
		if err != nil {
			return err
		}

		recorded, credited = t, w
		return nil
	})

	switch {
	case errors.Is(err, ErrDuplicateSettlement):
		l.Info().Str("reference", recorded.Reference).Msg("duplicate settlement ignored")
		return resultOf(recorded, true), nil

	case errors.Is(err, credit.ErrDuplicateSettlementKey):
		// A concurrent unit of work won the insert; report its row.
		existing, findErr := e.findByKey(ctx, order)
		if findErr != nil {
			return nil, findErr
		}
		l.Info().Str("reference", existing.Reference).Msg("duplicate settlement ignored after insert race")
		return resultOf(existing, true), nil

	case err != nil:
		return nil, err
	}

	metrics.CreditsSettled.Add(float64(order.Credits))
	notifySettled(ctx, e.notifiers, recorded, credited)

	l.Info().
		Str("reference", recorded.Reference).
		Str("buyer_id", buyer.ID.String()).
		Int64("credits", order.Credits).
		Str("amount", order.Amount.String()).
		Str("payment_status", string(recorded.PaymentStatus)).
		Msg("settlement recorded")

	return resultOf(recorded, false), nil
}

func (e *Engine) findByKey(ctx context.Context, order Order) (*credit.Transaction, error) {
	var found *credit.Transaction
	err := e.store.InTx(ctx, func(q Queries) error {
		t, err := q.FindTransactionByKey(ctx, order.SessionID, order.PaymentIntentID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("%w: settlement key vanished after unique violation", credit.ErrInternal)
		}
		found = t
		return nil
	})
	return found, err
}

func settleOutcome(res *Result, err error) string {
	switch {
	case err == nil && res.Duplicate:
		return "duplicate"
	case err == nil:
		return "settled"
	case errors.Is(err, ErrMissingSettlementData):
		return "missing_data"
	case errors.Is(err, ErrBuyerNotFound):
		return "buyer_not_found"
	case errors.Is(err, ErrProjectNotFound):
		return "project_not_found"
	case errors.Is(err, ErrInsufficientInventory):
		return "insufficient_inventory"
	default:
		return "error"
	}
}
