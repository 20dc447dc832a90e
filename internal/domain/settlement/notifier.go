package settlement

import (
	"context"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/metrics"
)

// Notifier receives committed ledger changes. It runs after commit, so a
// failure is logged and never undoes the settlement.
type Notifier interface {
	Name() string
	Settled(ctx context.Context, t *credit.Transaction, w *wallet.Wallet) error
	StatusChanged(ctx context.Context, t *credit.Transaction, previous credit.Status, reversed bool) error
}

func notifySettled(ctx context.Context, notifiers []Notifier, t *credit.Transaction, w *wallet.Wallet) {
	for _, n := range notifiers {
		if err := n.Settled(ctx, t, w); err != nil {
			metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
			logger.FromContext(ctx).Warn().Err(err).
				Str("notifier", n.Name()).
				Str("reference", t.Reference).
				Msg("settlement notifier failed")
		}
	}
}

func notifyStatusChanged(ctx context.Context, notifiers []Notifier, t *credit.Transaction, previous credit.Status, reversed bool) {
	for _, n := range notifiers {
		if err := n.StatusChanged(ctx, t, previous, reversed); err != nil {
			metrics.NotifierFailures.WithLabelValues(n.Name()).Inc()
			logger.FromContext(ctx).Warn().Err(err).
				Str("notifier", n.Name()).
				Str("reference", t.Reference).
				Msg("status notifier failed")
		}
	}
}
