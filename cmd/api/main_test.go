package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestMountLedgerRoutes(t *testing.T) {
	named := func(name string) http.Handler {
		r := chi.NewRouter()
		r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Mounted", name)
			w.WriteHeader(http.StatusOK)
		})
		return r
	}

	root := chi.NewRouter()
	mountLedgerRoutes(root, time.Second, ledgerRoutes{
		wallet:       named("wallet"),
		transactions: named("transactions"),
		admin:        named("admin"),
		webhooks:     named("webhooks"),
	})

	cases := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/wallet/", "wallet"},
		{http.MethodGet, "/api/v1/transactions/", "transactions"},
		{http.MethodGet, "/api/v1/transactions/CC-20240601-ABC123", "transactions"},
		{http.MethodPost, "/api/v1/admin/settlements", "admin"},
		{http.MethodPost, "/api/v1/admin/transactions/status", "admin"},
		{http.MethodPost, "/webhooks/stripe", "webhooks"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			root.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			if got := rr.Header().Get("X-Mounted"); got != tc.want {
				t.Fatalf("expected %s handler, got %q", tc.want, got)
			}
		})
	}
}

func TestMountLedgerRoutesUnknownPath(t *testing.T) {
	root := chi.NewRouter()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mountLedgerRoutes(root, time.Second, ledgerRoutes{wallet: ok, transactions: ok, admin: ok, webhooks: ok})

	rr := httptest.NewRecorder()
	root.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v2/wallet", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
