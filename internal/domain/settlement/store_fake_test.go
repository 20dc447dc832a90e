package settlement_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/project"
	"github.com/greenledger/credit-ledger/internal/domain/settlement"
	"github.com/greenledger/credit-ledger/internal/domain/user"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
)

// memStore is an in-memory Store. InTx holds one lock for the whole unit of
// work and restores a snapshot when fn fails.
type memStore struct {
	mu           sync.Mutex
	projects     map[uuid.UUID]project.Project
	transactions []credit.Transaction
	wallets      map[uuid.UUID]wallet.Wallet

	projectWrites int
	walletWrites  int
	units         int

	// touched records which aggregate each query reached, in call order.
	touched []string
}

func newMemStore() *memStore {
	return &memStore{
		projects: map[uuid.UUID]project.Project{},
		wallets:  map[uuid.UUID]wallet.Wallet{},
	}
}

func (s *memStore) addProject(available int64) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.projects[id] = project.Project{ID: id, Name: "P", CreditsAvailable: available}
	return id
}

func (s *memStore) project(id uuid.UUID) project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[id]
}

func (s *memStore) wallet(id uuid.UUID) (wallet.Wallet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	return w, ok
}

// lockOrder returns the aggregates touched since mark, with repeats collapsed.
func (s *memStore) lockOrder(mark int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var order []string
	for _, name := range s.touched[mark:] {
		if len(order) == 0 || order[len(order)-1] != name {
			order = append(order, name)
		}
	}
	return order
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *memStore) InTx(ctx context.Context, fn func(q settlement.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units++

	projects := make(map[uuid.UUID]project.Project, len(s.projects))
	for k, v := range s.projects {
		projects[k] = v
	}
	wallets := make(map[uuid.UUID]wallet.Wallet, len(s.wallets))
	for k, v := range s.wallets {
		wallets[k] = v
	}
	transactions := append([]credit.Transaction(nil), s.transactions...)
	projectWrites, walletWrites := s.projectWrites, s.walletWrites

	if err := fn(memQueries{s}); err != nil {
		s.projects, s.wallets, s.transactions = projects, wallets, transactions
		s.projectWrites, s.walletWrites = projectWrites, walletWrites
		return err
	}
	return nil
}

type memQueries struct{ s *memStore }

func (q memQueries) LockSettlementKey(context.Context, string, string) error { return nil }

func (q memQueries) FindTransactionByKey(_ context.Context, sessionID, paymentIntentID string) (*credit.Transaction, error) {
	for _, t := range q.s.transactions {
		if t.StripeSessionID == sessionID && t.StripePaymentIntentID == paymentIntentID {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

func (q memQueries) InsertTransaction(_ context.Context, t *credit.Transaction) error {
	for _, existing := range q.s.transactions {
		if existing.StripeSessionID == t.StripeSessionID && existing.StripePaymentIntentID == t.StripePaymentIntentID {
			return credit.ErrDuplicateSettlementKey
		}
	}
	q.s.transactions = append(q.s.transactions, *t)
	return nil
}

func (q memQueries) LockTransactionByPaymentIntent(_ context.Context, paymentIntentID string) (*credit.Transaction, error) {
	var matches []credit.Transaction
	for _, t := range q.s.transactions {
		if t.StripePaymentIntentID == paymentIntentID {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, credit.ErrTransactionNotFound
	case 1:
		return &matches[0], nil
	default:
		return nil, credit.ErrAmbiguousPaymentIntent
	}
}

func (q memQueries) UpdateTransactionStatus(_ context.Context, id uuid.UUID, status credit.Status, reversedAt *time.Time) (*credit.Transaction, error) {
	for i := range q.s.transactions {
		if q.s.transactions[i].ID == id {
			q.s.transactions[i].PaymentStatus = status
			if q.s.transactions[i].ReversedAt == nil {
				q.s.transactions[i].ReversedAt = reversedAt
			}
			updated := q.s.transactions[i]
			return &updated, nil
		}
	}
	return nil, credit.ErrTransactionNotFound
}

func (q memQueries) LockProject(_ context.Context, id uuid.UUID) (*project.Project, error) {
	q.s.touched = append(q.s.touched, "project")
	p, ok := q.s.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return &p, nil
}

func (q memQueries) ApplySale(_ context.Context, id uuid.UUID, credits int64) (*project.Project, error) {
	q.s.touched = append(q.s.touched, "project")
	p, ok := q.s.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	if p.CreditsAvailable < credits {
		return nil, project.ErrInsufficientInventory
	}
	p.CreditsAvailable -= credits
	p.CreditsSold += credits
	q.s.projects[id] = p
	q.s.projectWrites++
	return &p, nil
}

func (q memQueries) RestoreSale(_ context.Context, id uuid.UUID, credits int64) (*project.Project, error) {
	q.s.touched = append(q.s.touched, "project")
	p, ok := q.s.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	if p.CreditsSold < credits {
		return nil, project.ErrInventoryUnderflow
	}
	p.CreditsAvailable += credits
	p.CreditsSold -= credits
	q.s.projects[id] = p
	q.s.projectWrites++
	return &p, nil
}

func (q memQueries) CreditWallet(_ context.Context, buyerID uuid.UUID, credits decimal.Decimal, at time.Time) (*wallet.Wallet, error) {
	q.s.touched = append(q.s.touched, "wallet")
	w, ok := q.s.wallets[buyerID]
	if !ok {
		w = *wallet.Empty(buyerID)
		w.CreatedAt = at
	}
	w.Credit(credits, at)
	q.s.wallets[buyerID] = w
	q.s.walletWrites++
	return &w, nil
}

func (q memQueries) DebitWallet(_ context.Context, buyerID uuid.UUID, credits decimal.Decimal, at time.Time) (*wallet.Wallet, error) {
	q.s.touched = append(q.s.touched, "wallet")
	w, ok := q.s.wallets[buyerID]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if !w.CanDebit(credits) {
		return nil, wallet.ErrInsufficientFunds
	}
	w.Debit(credits, at)
	q.s.wallets[buyerID] = w
	q.s.walletWrites++
	return &w, nil
}

// memBuyers resolves emails the way the users table does.
type memBuyers map[string]*user.User

func (b memBuyers) add(email string) *user.User {
	u := &user.User{ID: uuid.New(), Email: email, Role: user.RoleBuyer}
	b[user.NormalizeEmail(email)] = u
	return u
}

func (b memBuyers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if email == "" {
		return nil, user.ErrEmailEmpty
	}
	u, ok := b[email]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

// recordingNotifier captures post-commit callbacks.
type recordingNotifier struct {
	mu       sync.Mutex
	settled  []string
	statuses []string
	fail     error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Settled(_ context.Context, t *credit.Transaction, _ *wallet.Wallet) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, t.Reference)
	return n.fail
}

func (n *recordingNotifier) StatusChanged(_ context.Context, t *credit.Transaction, previous credit.Status, reversed bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry := string(previous) + "->" + string(t.PaymentStatus)
	if reversed {
		entry += " reversed"
	}
	n.statuses = append(n.statuses, entry)
	return n.fail
}

func (n *recordingNotifier) settledCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.settled)
}

func paidEvent(email, sessionID, paymentIntentID string, projectID uuid.UUID, credits, amount string) settlement.PaymentEvent {
	meta := settlement.Metadata{Credits: credits, Amount: amount}
	if projectID != uuid.Nil {
		meta.ProjectID = projectID.String()
	}
	return settlement.PaymentEvent{
		SessionID:       sessionID,
		PaymentIntentID: paymentIntentID,
		AmountTotal:     50000,
		Currency:        "USD",
		PaymentStatus:   "paid",
		CustomerEmail:   strings.ToUpper(email),
		Metadata:        meta,
	}
}
