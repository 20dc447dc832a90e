package settlement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/middleware"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/response"
	"github.com/greenledger/credit-ledger/internal/pkg/validator"
)

// Handler exposes settlement and reconciliation to operators.
type Handler struct {
	engine     *Engine
	reconciler *Reconciler
}

func NewHandler(engine *Engine, reconciler *Reconciler) *Handler {
	return &Handler{engine: engine, reconciler: reconciler}
}

type statusRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	Status          string `json:"status" validate:"required,payment_status"`
}

// Settle handles POST /admin/settlements
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var event PaymentEvent
	if err := response.DecodeJSON(r.Body, &event); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	res, err := h.engine.Settle(r.Context(), event)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if res.Duplicate {
		response.OK(w, res)
		return
	}
	response.Created(w, res)
}

// UpdateStatus handles POST /admin/transactions/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "INVALID_STATUS_REQUEST", "Validation failed", errs)
		return
	}

	status, err := credit.ParseStatus(req.Status)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	change, err := h.reconciler.UpdateStatus(r.Context(), req.PaymentIntentID, status)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	response.OK(w, change)
}

// Routes mounts the operator endpoints behind admin auth.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Post("/settlements", h.Settle)
	r.Post("/transactions/status", h.UpdateStatus)
	return r
}

// StatusCode maps a settlement or reconciliation error to an HTTP status.
func StatusCode(err error) int {
	var fieldErr *FieldError
	switch {
	case errors.As(err, &fieldErr), errors.Is(err, ErrMissingSettlementData), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ErrBuyerNotFound), errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientInventory), errors.Is(err, ErrReversalExceedsBalance),
		errors.Is(err, credit.ErrAmbiguousPaymentIntent):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err in the response envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		response.ErrorWithDetails(w, http.StatusBadRequest, "MISSING_SETTLEMENT_DATA", ErrMissingSettlementData.Error(), fieldErr.Fields)
		return
	}

	status := StatusCode(err)
	switch status {
	case http.StatusBadRequest:
		response.BadRequest(w, err.Error())
	case http.StatusNotFound:
		response.NotFound(w, err.Error())
	case http.StatusConflict:
		response.Conflict(w, err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("settlement request failed")
		response.InternalError(w)
	}
}
