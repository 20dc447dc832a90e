package settlement_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/settlement"
	"github.com/greenledger/credit-ledger/internal/middleware"
	"github.com/greenledger/credit-ledger/internal/pkg/jwt"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := map[error]int{
		settlement.ErrMissingSettlementData:                 http.StatusBadRequest,
		&settlement.FieldError{Fields: map[string]string{}}: http.StatusBadRequest,
		fmt.Errorf("%w: a@b", settlement.ErrBuyerNotFound):  http.StatusNotFound,
		settlement.ErrProjectNotFound:                       http.StatusNotFound,
		settlement.ErrTransactionNotFound:                   http.StatusNotFound,
		settlement.ErrInsufficientInventory:                 http.StatusConflict,
		settlement.ErrReversalExceedsBalance:                http.StatusConflict,
		credit.ErrAmbiguousPaymentIntent:                    http.StatusConflict,
		errors.New("connection reset"):                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := settlement.StatusCode(err); got != want {
			t.Errorf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestAdminEndpoints(t *testing.T) {
	store := newMemStore()
	buyers := memBuyers{}
	buyers.add("admin-flow@x.com")
	projectID := store.addProject(20)

	engine := newEngine(store, buyers, &recordingNotifier{})
	h := settlement.NewHandler(engine, settlement.NewReconciler(store))

	jwtSvc := jwt.NewService("settlement-test-secret", time.Hour)
	adminToken, err := jwtSvc.GenerateAccessToken(uuid.New(), "admin")
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}
	buyerToken, err := jwtSvc.GenerateAccessToken(uuid.New(), "buyer")
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api/v1/admin", h.Routes(middleware.Auth(jwtSvc)))

	event := paidEvent("admin-flow@x.com", "cs_admin", "pi_admin", projectID, "5", "25")

	t.Run("buyer forbidden", func(t *testing.T) {
		rec := perform(t, r, buyerToken, "/api/v1/admin/settlements", event)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("settle then duplicate", func(t *testing.T) {
		rec := perform(t, r, adminToken, "/api/v1/admin/settlements", event)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		rec = perform(t, r, adminToken, "/api/v1/admin/settlements", event)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
		}

		var body struct {
			Success bool              `json:"success"`
			Data    settlement.Result `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !body.Success || !body.Data.Duplicate {
			t.Fatalf("expected duplicate result, got %s", rec.Body.String())
		}
	})

	t.Run("insufficient inventory", func(t *testing.T) {
		big := paidEvent("admin-flow@x.com", "cs_big", "pi_big", projectID, "500", "25")
		rec := perform(t, r, adminToken, "/api/v1/admin/settlements", big)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("missing data", func(t *testing.T) {
		bad := paidEvent("admin-flow@x.com", "cs_bad", "pi_bad", projectID, "", "25")
		rec := perform(t, r, adminToken, "/api/v1/admin/settlements", bad)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("status update", func(t *testing.T) {
		rec := perform(t, r, adminToken, "/api/v1/admin/transactions/status",
			map[string]string{"payment_intent_id": "pi_admin", "status": "refunded"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if p := store.project(projectID); p.CreditsAvailable != 20 {
			t.Fatalf("refund did not restore inventory: %d", p.CreditsAvailable)
		}
	})

	t.Run("status update validation", func(t *testing.T) {
		rec := perform(t, r, adminToken, "/api/v1/admin/transactions/status",
			map[string]string{"payment_intent_id": "pi_admin", "status": "paid"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "INVALID_STATUS_REQUEST") {
			t.Fatalf("expected status validation error, got %s", rec.Body.String())
		}
		rec = perform(t, r, adminToken, "/api/v1/admin/transactions/status",
			map[string]string{"status": "failed"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("missing payment intent: expected 400, got %d", rec.Code)
		}
		rec = perform(t, r, adminToken, "/api/v1/admin/transactions/status",
			map[string]string{"payment_intent_id": "pi_unknown", "status": "failed"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func perform(t *testing.T, h http.Handler, token, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
