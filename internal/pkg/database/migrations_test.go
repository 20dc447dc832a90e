package database

import (
	"sort"
	"strings"
	"testing"
)

func TestMigrationsOrderedAndUnique(t *testing.T) {
	seen := map[string]bool{}
	versions := make([]string, 0, len(Migrations))
	for _, m := range Migrations {
		if seen[m.Version] {
			t.Fatalf("duplicate migration version %s", m.Version)
		}
		seen[m.Version] = true
		versions = append(versions, m.Version)
	}
	if !sort.StringsAreSorted(versions) {
		t.Fatalf("migrations must be declared in version order: %v", versions)
	}
}

func TestTransactionsSchemaCarriesIdempotencyKey(t *testing.T) {
	var ddl string
	for _, m := range Migrations {
		if m.Name == "create_credit_transactions" {
			ddl = m.SQL
		}
	}
	if ddl == "" {
		t.Fatal("credit_transactions migration missing")
	}
	if !strings.Contains(ddl, "UNIQUE (stripe_session_id, stripe_payment_intent_id)") {
		t.Fatal("settlement key must be unique")
	}
	if !strings.Contains(ddl, "UNIQUE (transaction_reference)") {
		t.Fatal("transaction reference must be unique")
	}
}
