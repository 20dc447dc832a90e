package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/credit-ledger/internal/app"
	"github.com/greenledger/credit-ledger/internal/config"
	"github.com/greenledger/credit-ledger/internal/domain/credit"
	"github.com/greenledger/credit-ledger/internal/domain/payment"
	"github.com/greenledger/credit-ledger/internal/domain/settlement"
	"github.com/greenledger/credit-ledger/internal/domain/wallet"
	"github.com/greenledger/credit-ledger/internal/middleware"
	"github.com/greenledger/credit-ledger/internal/pkg/database"
	"github.com/greenledger/credit-ledger/internal/pkg/jwt"
	"github.com/greenledger/credit-ledger/internal/pkg/logger"
	"github.com/greenledger/credit-ledger/internal/pkg/metrics"
	pkgresponse "github.com/greenledger/credit-ledger/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting credit ledger API")

	if cfg.StripeWebhookSecret == "" {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		applied, err := database.Migrate(context.Background(), db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Int("applied", applied).Msg("Schema up to date")
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	ledger, err := app.NewLedger(context.Background(), cfg, db, redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build ledger")
	}

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(wallet.NewService(ledger.Wallets))
	transactionHandler := credit.NewHandler(credit.NewService(ledger.Transactions))
	settlementHandler := settlement.NewHandler(ledger.Engine, ledger.Reconciler)
	paymentHandler := payment.NewHandler(
		payment.NewService(ledger.Engine, ledger.Reconciler),
		cfg.StripeWebhookSecret,
	)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			pkgresponse.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	mountLedgerRoutes(r, cfg.RequestTimeout, ledgerRoutes{
		wallet:       walletHandler.Routes(authMiddleware),
		transactions: transactionHandler.Routes(authMiddleware),
		admin:        settlementHandler.Routes(authMiddleware),
		webhooks:     paymentHandler.Routes(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type ledgerRoutes struct {
	wallet       http.Handler
	transactions http.Handler
	admin        http.Handler
	webhooks     http.Handler
}

func mountLedgerRoutes(r chi.Router, timeout time.Duration, routes ledgerRoutes) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Mount("/wallet", routes.wallet)
			r.Mount("/transactions", routes.transactions)
		})

		// Settlement runs to completion once started; no request deadline here.
		r.Mount("/admin", routes.admin)
	})

	r.Mount("/webhooks", routes.webhooks)
}
