package settlement

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/pkg/validator"
)

// PaymentEvent is a completed-payment notification as delivered by the
// payment processor. Metadata values arrive as strings.
type PaymentEvent struct {
	SessionID       string   `json:"session_id" validate:"required"`
	PaymentIntentID string   `json:"payment_intent_id" validate:"required"`
	AmountTotal     int64    `json:"amount_total" validate:"gte=0"`
	Currency        string   `json:"currency"`
	PaymentStatus   string   `json:"payment_status"`
	CustomerEmail   string   `json:"customer_email"`
	Metadata        Metadata `json:"metadata"`
}

// Metadata is what checkout attached to the session.
type Metadata struct {
	Credits   string `json:"credits" validate:"required,positive_whole"`
	Amount    string `json:"amount" validate:"required,positive_decimal"`
	ProjectID string `json:"project_id"`
}

// Order is a validated PaymentEvent. Every field is parsed exactly once.
type Order struct {
	SessionID       string
	PaymentIntentID string
	Email           string
	ProjectID       string
	Credits         int64
	Amount          decimal.Decimal
	Currency        string
	Status          credit.Status
}

// HasProject reports whether the order draws from project inventory.
func (o Order) HasProject() bool {
	return o.ProjectID != ""
}

// ParseProjectID parses the project reference. An unparseable id cannot name
// an existing project.
func (o Order) ParseProjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(o.ProjectID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrProjectNotFound, o.ProjectID)
	}
	return id, nil
}

// Validate checks the event at the boundary and converts it into an Order.
func (e PaymentEvent) Validate() (Order, error) {
	if errs := validator.Validate(e); errs != nil {
		return Order{}, &FieldError{Fields: errs}
	}

	credits, err := decimal.NewFromString(strings.TrimSpace(e.Metadata.Credits))
	if err != nil {
		return Order{}, &FieldError{Fields: map[string]string{"credits": err.Error()}}
	}
	if !credits.IsInteger() || credits.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Order{}, &FieldError{Fields: map[string]string{"credits": "Must be a positive whole number"}}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(e.Metadata.Amount))
	if err != nil {
		return Order{}, &FieldError{Fields: map[string]string{"amount": err.Error()}}
	}

	currency := strings.ToLower(strings.TrimSpace(e.Currency))
	if currency == "" {
		currency = "usd"
	}

	return Order{
		SessionID:       strings.TrimSpace(e.SessionID),
		PaymentIntentID: strings.TrimSpace(e.PaymentIntentID),
		Email:           e.CustomerEmail,
		ProjectID:       strings.TrimSpace(e.Metadata.ProjectID),
		Credits:         credits.IntPart(),
		Amount:          amount,
		Currency:        currency,
		Status:          credit.MapPaymentStatus(e.PaymentStatus),
	}, nil
}
