package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
)

const (
	EventSettlementRecorded = "settlement.recorded"
	EventStatusChanged      = "transaction.status_changed"
)

// LedgerEvent is the message other services receive on the events channel.
type LedgerEvent struct {
	Type           string           `json:"type"`
	TransactionID  uuid.UUID        `json:"transaction_id"`
	Reference      string           `json:"transaction_reference"`
	BuyerID        uuid.UUID        `json:"buyer_id"`
	ProjectID      *uuid.UUID       `json:"project_id,omitempty"`
	Credits        decimal.Decimal  `json:"credits"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Currency       string           `json:"currency"`
	Status         credit.Status    `json:"payment_status"`
	PreviousStatus credit.Status    `json:"previous_status,omitempty"`
	Reversed       bool             `json:"reversed,omitempty"`
	WalletBalance  *decimal.Decimal `json:"wallet_available_credits,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

func newLedgerEvent(eventType string, t *credit.Transaction, at time.Time) LedgerEvent {
	ev := LedgerEvent{
		Type:          eventType,
		TransactionID: t.ID,
		Reference:     t.Reference,
		BuyerID:       t.BuyerID,
		Credits:       t.CreditAmount,
		TotalAmount:   t.TotalAmount,
		Currency:      t.Currency,
		Status:        t.PaymentStatus,
		OccurredAt:    at,
	}
	if t.HasProject() {
		id := t.ProjectID.UUID
		ev.ProjectID = &id
	}
	return ev
}

// EventPublisher fans committed ledger changes out over Redis pub/sub.
// Without a Redis client it does nothing.
type EventPublisher struct {
	channel string
	publish func(ctx context.Context, channel string, payload []byte) error
	now     func() time.Time
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisher {
	p := &EventPublisher{channel: channel, now: time.Now}
	if client != nil {
		p.publish = func(ctx context.Context, channel string, payload []byte) error {
			return client.Publish(ctx, channel, payload).Err()
		}
	}
	return p
}

func (p *EventPublisher) Name() string { return "redis_events" }

func (p *EventPublisher) Settled(ctx context.Context, t *credit.Transaction, w *wallet.Wallet) error {
	ev := newLedgerEvent(EventSettlementRecorded, t, p.now().UTC())
	if w != nil {
		balance := w.AvailableCredits
		ev.WalletBalance = &balance
	}
	return p.send(ctx, ev)
}

func (p *EventPublisher) StatusChanged(ctx context.Context, t *credit.Transaction, previous credit.Status, reversed bool) error {
	ev := newLedgerEvent(EventStatusChanged, t, p.now().UTC())
	ev.PreviousStatus = previous
	ev.Reversed = reversed
	return p.send(ctx, ev)
}

func (p *EventPublisher) send(ctx context.Context, ev LedgerEvent) error {
	if p.publish == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	if err := p.publish(ctx, p.channel, payload); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Type, p.channel, err)
	}
	return nil
}
