package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Reader loads a single wallet.
type Reader interface {
	Get(ctx context.Context, userID uuid.UUID) (*Wallet, error)
}

type Service struct {
	repo Reader
}

func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// Get returns the buyer's wallet, or an all-zero wallet before the first
// settlement.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return Empty(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
