package credit

import (
	"context"

	"github.com/google/uuid"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// Reader is the read side of the transaction log.
type Reader interface {
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]Transaction, error)
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
}

// Service answers buyer-facing history queries.
type Service struct {
	repo Reader
}

func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// ClampLimit applies the default page size and the upper bound.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListForBuyer returns the buyer's most recent transactions, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]Transaction, error) {
	return s.repo.ListByBuyer(ctx, buyerID, ClampLimit(limit))
}

// GetForBuyer returns a transaction by reference. Another buyer's transaction
// is reported as not found; admins see everything.
func (s *Service) GetForBuyer(ctx context.Context, buyerID uuid.UUID, isAdmin bool, reference string) (*Transaction, error) {
	t, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !isAdmin && t.BuyerID != buyerID {
		return nil, ErrTransactionNotFound
	}
	return t, nil
}
