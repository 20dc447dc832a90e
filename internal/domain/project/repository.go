package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const projectColumns = `id, name, credits_available, credits_sold, updated_at`

// Repository owns the per-project credit counters. Mutations run inside a
// caller-owned transaction; the caller commits or rolls back.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetByID reads a project without locking it.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var p Project
	err := r.db.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// LockTx loads the project row FOR UPDATE, serialising every settlement that
// touches the same project until tx ends.
func (r *Repository) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Project, error) {
	var p Project
	err := tx.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("lock project: %w", err)
	}
	return &p, nil
}

// ApplySaleTx moves credits from available to sold. The WHERE guard makes the
// update a compare-and-set even if the row was not locked first.
func (r *Repository) ApplySaleTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, credits int64) (*Project, error) {
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}

	var p Project
	err := tx.GetContext(ctx, &p, `
		UPDATE projects
		SET credits_available = credits_available - $2,
		    credits_sold = credits_sold + $2,
		    updated_at = NOW()
		WHERE id = $1 AND credits_available >= $2
		RETURNING `+projectColumns, id, credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientInventory
		}
		return nil, fmt.Errorf("apply sale: %w", err)
	}
	return &p, nil
}

// RestoreSaleTx moves credits back from sold to available.
func (r *Repository) RestoreSaleTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, credits int64) (*Project, error) {
	if credits <= 0 {
		return nil, ErrInvalidCredits
	}

	var p Project
	err := tx.GetContext(ctx, &p, `
		UPDATE projects
		SET credits_available = credits_available + $2,
		    credits_sold = credits_sold - $2,
		    updated_at = NOW()
		WHERE id = $1 AND credits_sold >= $2
		RETURNING `+projectColumns, id, credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryUnderflow
		}
		return nil, fmt.Errorf("restore sale: %w", err)
	}
	return &p, nil
}
