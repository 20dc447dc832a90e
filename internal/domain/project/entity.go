package project

import (
	"time"

	"github.com/google/uuid"
)

// Project is the credit inventory slice of a registered project.
// Credits only move between the two counters; their sum is conserved.
type Project struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	CreditsAvailable int64     `db:"credits_available" json:"credits_available"`
	CreditsSold      int64     `db:"credits_sold" json:"credits_sold"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// CanSell reports whether the project still holds the requested credits.
func (p Project) CanSell(credits int64) bool {
	return credits > 0 && p.CreditsAvailable >= credits
}

// TotalCredits is the conserved inventory size.
func (p Project) TotalCredits() int64 {
	return p.CreditsAvailable + p.CreditsSold
}
