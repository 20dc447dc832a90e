package payment

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/greenledger/credit-ledger/internal/domain/settlement"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/metrics"
	"github.com/greenledger/credit-ledger/internal/pkg/response"
)

const maxWebhookBody = 64 << 10

// Handler receives Stripe webhooks. A non-2xx reply makes Stripe redeliver,
// which is safe because settlement is idempotent.
type Handler struct {
	service *Service
	secret  string
}

func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, secret: webhookSecret}
}

// Stripe handles POST /webhooks/stripe
func (h *Handler) Stripe(w http.ResponseWriter, r *http.Request) {
	event, err := h.verify(w, r)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unverified", strconv.Itoa(http.StatusBadRequest)).Inc()
		logger.FromContext(r.Context()).Warn().Err(err).Msg("stripe webhook rejected")
		response.BadRequest(w, err.Error())
		return
	}

	out, err := h.service.Dispatch(r.Context(), event)
	if err != nil {
		status := settlement.StatusCode(err)
		if errors.Is(err, ErrInvalidPayload) {
			status = http.StatusBadRequest
		}
		metrics.WebhookEvents.WithLabelValues(string(event.Type), strconv.Itoa(status)).Inc()
		logger.FromContext(r.Context()).Warn().Err(err).
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Int("status", status).
			Msg("stripe webhook failed")

		if errors.Is(err, ErrInvalidPayload) {
			response.BadRequest(w, err.Error())
			return
		}
		settlement.WriteError(w, r, err)
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), strconv.Itoa(http.StatusOK)).Inc()
	response.OK(w, out)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{
			Tolerance:                webhook.DefaultTolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// Routes returns the webhook router (no auth, signature verification).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.Stripe)
	return r
}
