package credit

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenledger/credit-ledger/internal/middleware"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /transactions?limit=N
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	limit = ClampLimit(limit)

	transactions, err := h.svc.ListForBuyer(r.Context(), userID, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("list transactions failed")
		response.InternalError(w)
		return
	}

	response.WithMeta(w, transactions, response.Meta{Limit: limit, Count: len(transactions)})
}

// Get handles GET /transactions/{reference}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	t, err := h.svc.GetForBuyer(r.Context(), userID, middleware.GetRole(r.Context()) == "admin", chi.URLParam(r, "reference"))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			response.NotFound(w, "transaction not found")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("get transaction failed")
		response.InternalError(w)
		return
	}

	response.OK(w, t)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	r.Get("/{reference}", h.Get)
	return r
}
