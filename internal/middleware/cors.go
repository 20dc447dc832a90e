package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSHandler allows the buyer dashboard to read wallets and transactions.
// The ledger API is read-mostly from the browser; writes come from Stripe
// and operators, neither of which need CORS.
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
