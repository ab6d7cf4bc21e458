package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/adapter/http/handler"
	"marketplace-ledger/internal/adapter/http/middleware"
	pgStorage "marketplace-ledger/internal/adapter/storage/postgres"
	redisStorage "marketplace-ledger/internal/adapter/storage/redis"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/metrics"
	"marketplace-ledger/internal/service"
	"marketplace-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("currency", cfg.Ledger.Currency).
		Msg("Starting marketplace ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	healthCheckers := []ports.HealthChecker{pgStorage.NewHealthCheck(pool)}

	// Initialize Redis client (optional: idempotency replay and rate limiting)
	var (
		idempotencyCache ports.IdempotencyCache
		rateLimiter      ports.RateLimiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		if cfg.RateLimit.Enabled {
			rateLimiter = redisStorage.NewRateLimitStore(rdb)
		}
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: Idempotency-Key replay and rate limiting are off")
	}

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	escrowRepo := pgStorage.NewEscrowRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	invoiceRepo := pgStorage.NewInvoiceRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.LockTimeout)

	// Initialize core services
	encSvc, err := service.NewSecretBox(cfg.Encryption.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	tokenSvc := service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, cfg.Auth.Issuer)
	rec := metrics.New()
	retry := service.RetryPolicy{MaxAttempts: cfg.Ledger.MaxRetries, Backoff: cfg.Ledger.RetryBackoff}

	// Initialize business services
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	ledgerSvc := service.NewLedgerService(
		walletRepo, txRepo, auditRepo, encSvc, transactor,
		service.LedgerSettings{
			Currency:            cfg.Ledger.Currency,
			LowBalanceThreshold: cfg.Ledger.LowBalanceThreshold,
			ListLimit:           cfg.Ledger.ListLimit,
		},
		retry, rec, logger.Component(log, "ledger"),
	)
	escrowSvc := service.NewEscrowService(
		escrowRepo, auditRepo, ledgerSvc, transactor,
		cfg.Ledger.ListLimit, retry, rec, logger.Component(log, "escrow"),
	)
	payoutSvc := service.NewPayoutService(
		payoutRepo, walletRepo, escrowRepo, auditRepo, ledgerSvc, transactor,
		service.PayoutOptions{MinimumPayout: cfg.Ledger.MinimumPayout, ListLimit: cfg.Ledger.ListLimit},
		retry, rec, logger.Component(log, "payout"),
	)
	invoiceSvc := service.NewInvoiceService(
		invoiceRepo, auditRepo, auditSvc, transactor,
		cfg.Ledger.ListLimit, logger.Component(log, "invoice"),
	)

	// Setup Gin router with all routes
	router := handler.SetupRouter(handler.RouterDeps{
		LedgerSvc:        ledgerSvc,
		EscrowSvc:        escrowSvc,
		PayoutSvc:        payoutSvc,
		InvoiceSvc:       invoiceSvc,
		AuditSvc:         auditSvc,
		TokenSvc:         tokenSvc,
		IdempotencyCache: idempotencyCache,
		RateLimiter:      rateLimiter,
		HealthCheckers:   healthCheckers,
		Metrics:          rec,
		Logger:           logger.Component(log, "http"),
		Options: handler.RouterOptions{
			Mode:           cfg.Server.Mode,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RateLimit:      middleware.RateLimitRule{Limit: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
			IdempotencyTTL: cfg.Idempotency.TTL,
			RequireActor:   cfg.Auth.RequireActor,
			DefaultActor:   cfg.Auth.DefaultActor,
		},
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
