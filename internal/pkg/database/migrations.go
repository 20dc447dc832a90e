package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// Migrations is the ordered ledger schema.
var Migrations = []Migration{
	{
		Version: "20240601000001",
		Name:    "create_users",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
    id         UUID PRIMARY KEY,
    email      TEXT NOT NULL,
    role       TEXT NOT NULL DEFAULT 'buyer',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email));
`,
	},
	{
		Version: "20240601000002",
		Name:    "create_projects",
		SQL: `
CREATE TABLE IF NOT EXISTS projects (
    id                UUID PRIMARY KEY,
    name              TEXT NOT NULL DEFAULT '',
    credits_available BIGINT NOT NULL DEFAULT 0 CHECK (credits_available >= 0),
    credits_sold      BIGINT NOT NULL DEFAULT 0 CHECK (credits_sold >= 0),
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	},
	{
		Version: "20240601000003",
		Name:    "create_credit_transactions",
		SQL: `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id                       UUID PRIMARY KEY,
    buyer_id                 UUID NOT NULL REFERENCES users (id),
    project_id               UUID REFERENCES projects (id),
    credit_amount            NUMERIC(20,4) NOT NULL CHECK (credit_amount > 0),
    unit_price               NUMERIC(20,6) NOT NULL,
    total_amount             NUMERIC(20,4) NOT NULL CHECK (total_amount > 0),
    currency                 TEXT NOT NULL DEFAULT 'usd',
    stripe_payment_intent_id TEXT NOT NULL,
    stripe_session_id        TEXT NOT NULL,
    transaction_reference    TEXT NOT NULL,
    payment_status           TEXT NOT NULL DEFAULT 'pending',
    reversed_at              TIMESTAMPTZ,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT credit_transactions_settlement_key UNIQUE (stripe_session_id, stripe_payment_intent_id),
    CONSTRAINT credit_transactions_reference_key UNIQUE (transaction_reference),
    CONSTRAINT credit_transactions_status_check CHECK (
        payment_status IN ('pending', 'processing', 'completed', 'failed', 'refunded', 'expired')
    )
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_buyer ON credit_transactions (buyer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_credit_transactions_payment_intent ON credit_transactions (stripe_payment_intent_id);
`,
	},
	{
		Version: "20240601000004",
		Name:    "create_user_wallets",
		SQL: `
CREATE TABLE IF NOT EXISTS user_wallets (
    user_id             UUID PRIMARY KEY REFERENCES users (id),
    available_credits   NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (available_credits >= 0),
    total_purchased     NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (total_purchased >= 0),
    total_allocated     NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (total_allocated >= 0),
    total_spent         NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (total_spent >= 0),
    lifetime_impact     NUMERIC(20,4) NOT NULL DEFAULT 0 CHECK (lifetime_impact >= 0),
    last_transaction_at TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT user_wallets_balance_check CHECK (
        available_credits = total_purchased - total_allocated - total_spent
    )
);
`,
	},
}

// Migrate applies pending migrations in order. Each step runs in its own
// transaction and is recorded in schema_migrations.
func Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	var versions []string
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	for _, v := range versions {
		applied[v] = true
	}

	count := 0
	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return count, err
		}
		log.Info().Str("version", m.Version).Str("name", m.Name).Msg("Migration applied")
		count++
	}
	return count, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: begin: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %s (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("migration %s: record: %w", m.Version, err)
	}
	return tx.Commit()
}
