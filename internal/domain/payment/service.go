package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/settlement"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
)

// Stripe event types the ledger reacts to.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired        = "checkout.session.expired"
	EventChargeRefunded         = "charge.refunded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Settler records completed payments.
type Settler interface {
	Settle(ctx context.Context, event settlement.PaymentEvent) (*settlement.Result, error)
}

// StatusUpdater applies later payment-status transitions.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, paymentIntentID string, status credit.Status) (*settlement.StatusChange, error)
}

// Outcome describes what a webhook delivery did.
type Outcome struct {
	Action string                   `json:"action"`
	Result *settlement.Result       `json:"result,omitempty"`
	Change *settlement.StatusChange `json:"change,omitempty"`
}

const (
	ActionSettled   = "settled"
	ActionDuplicate = "duplicate"
	ActionStatus    = "status_updated"
	ActionIgnored   = "ignored"
)

// Service routes verified Stripe events to the settlement engine and the
// status reconciler.
type Service struct {
	settler    Settler
	reconciler StatusUpdater
}

func NewService(settler Settler, reconciler StatusUpdater) *Service {
	return &Service{settler: settler, reconciler: reconciler}
}

// Dispatch handles one event. Unknown event types are ignored.
func (s *Service) Dispatch(ctx context.Context, event stripe.Event) (*Outcome, error) {
	l := logger.FromContext(ctx).With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()
	ctx = logger.WithContext(ctx, &l)

	switch string(event.Type) {
	case EventCheckoutCompleted:
		session, err := decodeSession(event)
		if err != nil {
			return nil, err
		}
		return s.settle(ctx, session)

	case EventCheckoutAsyncSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return nil, err
		}
		out, err := s.settle(ctx, session)
		if err != nil {
			return nil, err
		}
		// The session was first recorded as pending when checkout completed
		// with an unpaid delayed payment method.
		if out.Result.Duplicate && out.Result.PaymentStatus != credit.StatusCompleted {
			return s.updateStatus(ctx, paymentIntentOf(session), credit.StatusCompleted)
		}
		return out, nil

	case EventCheckoutAsyncFailed:
		session, err := decodeSession(event)
		if err != nil {
			return nil, err
		}
		return s.updateStatus(ctx, paymentIntentOf(session), credit.StatusFailed)

	case EventCheckoutExpired:
		session, err := decodeSession(event)
		if err != nil {
			return nil, err
		}
		return s.updateStatus(ctx, paymentIntentOf(session), credit.StatusExpired)

	case EventChargeRefunded:
		var charge stripe.Charge
		if err := decodeObject(event, &charge); err != nil {
			return nil, err
		}
		if !charge.Refunded {
			l.Info().Str("charge_id", charge.ID).Int64("amount_refunded", charge.AmountRefunded).
				Msg("partial refund not reconciled")
			return &Outcome{Action: ActionIgnored}, nil
		}
		pi := ""
		if charge.PaymentIntent != nil {
			pi = charge.PaymentIntent.ID
		}
		return s.updateStatus(ctx, pi, credit.StatusRefunded)

	case EventPaymentIntentFailed:
		var intent stripe.PaymentIntent
		if err := decodeObject(event, &intent); err != nil {
			return nil, err
		}
		return s.updateStatus(ctx, intent.ID, credit.StatusFailed)

	default:
		l.Debug().Msg("webhook event ignored")
		return &Outcome{Action: ActionIgnored}, nil
	}
}

func (s *Service) settle(ctx context.Context, session *stripe.CheckoutSession) (*Outcome, error) {
	res, err := s.settler.Settle(ctx, paymentEventOf(session))
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		return &Outcome{Action: ActionDuplicate, Result: res}, nil
	}
	return &Outcome{Action: ActionSettled, Result: res}, nil
}

// updateStatus treats a payment the ledger never settled as nothing to do:
// failures and expiries routinely arrive for sessions that never completed.
func (s *Service) updateStatus(ctx context.Context, paymentIntentID string, status credit.Status) (*Outcome, error) {
	if paymentIntentID == "" {
		logger.FromContext(ctx).Debug().Str("status", string(status)).Msg("no payment intent on event")
		return &Outcome{Action: ActionIgnored}, nil
	}

	change, err := s.reconciler.UpdateStatus(ctx, paymentIntentID, status)
	if errors.Is(err, settlement.ErrTransactionNotFound) {
		logger.FromContext(ctx).Warn().Str("payment_intent_id", paymentIntentID).Str("status", string(status)).
			Msg("status event for unsettled payment")
		return &Outcome{Action: ActionIgnored}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Action: ActionStatus, Change: change}, nil
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := decodeObject(event, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func decodeObject(event stripe.Event, v interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: event %s has no data", ErrInvalidPayload, event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func paymentIntentOf(session *stripe.CheckoutSession) string {
	if session.PaymentIntent == nil {
		return ""
	}
	return session.PaymentIntent.ID
}

// paymentEventOf maps a checkout session onto the settlement input. The email
// prefilled at checkout wins over what the customer typed. Checkout writes the
// project under either metadata key.
func paymentEventOf(session *stripe.CheckoutSession) settlement.PaymentEvent {
	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	projectID := session.Metadata["projectId"]
	if projectID == "" {
		projectID = session.Metadata["project_id"]
	}

	return settlement.PaymentEvent{
		SessionID:       session.ID,
		PaymentIntentID: paymentIntentOf(session),
		AmountTotal:     session.AmountTotal,
		Currency:        string(session.Currency),
		PaymentStatus:   string(session.PaymentStatus),
		CustomerEmail:   email,
		Metadata: settlement.Metadata{
			Credits:   session.Metadata["credits"],
			Amount:    session.Metadata["amount"],
			ProjectID: projectID,
		},
	}
}
