package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
	"github.com/greenledger/credit-ledger/internal/pkg/storage"
)

// Receipt is the archived record of a settlement and its later status
// changes.
type Receipt struct {
	Transaction *credit.Transaction `json:"transaction"`
	Wallet      *wallet.Wallet      `json:"wallet,omitempty"`
	Previous    credit.Status       `json:"previous_status,omitempty"`
	Reversed    bool                `json:"reversed,omitempty"`
	ArchivedAt  time.Time           `json:"archived_at"`
}

// ReceiptArchive writes one JSON receipt per settlement, keyed by
// transaction reference, plus one object per status change.
type ReceiptArchive struct {
	store  storage.ObjectStore
	prefix string
	now    func() time.Time
}

func NewReceiptArchive(store storage.ObjectStore, prefix string) *ReceiptArchive {
	return &ReceiptArchive{store: store, prefix: prefix, now: time.Now}
}

func (a *ReceiptArchive) Name() string { return "receipt_archive" }

// SettlementKey is the object key of a settlement receipt.
func (a *ReceiptArchive) SettlementKey(reference string) string {
	return path.Join(a.prefix, reference+".json")
}

// StatusKey is the object key of a status-change receipt.
func (a *ReceiptArchive) StatusKey(reference string, status credit.Status, at time.Time) string {
	return path.Join(a.prefix, reference, fmt.Sprintf("%d-%s.json", at.UnixMilli(), status))
}

// Settled archives the settlement receipt. An existing receipt is kept: the
// first committed view of a settlement is the one of record.
func (a *ReceiptArchive) Settled(ctx context.Context, t *credit.Transaction, w *wallet.Wallet) error {
	key := a.SettlementKey(t.Reference)
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.put(ctx, key, Receipt{Transaction: t, Wallet: w, ArchivedAt: a.now().UTC()})
}

func (a *ReceiptArchive) StatusChanged(ctx context.Context, t *credit.Transaction, previous credit.Status, reversed bool) error {
	now := a.now().UTC()
	return a.put(ctx, a.StatusKey(t.Reference, t.PaymentStatus, now), Receipt{
		Transaction: t,
		Previous:    previous,
		Reversed:    reversed,
		ArchivedAt:  now,
	})
}

func (a *ReceiptArchive) put(ctx context.Context, key string, r Receipt) error {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	return a.store.Put(ctx, key, bytes.NewReader(body), "application/json")
}
