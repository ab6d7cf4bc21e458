package handler

import (
	"time"

	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc        ports.LedgerService
	EscrowSvc        ports.EscrowService
	PayoutSvc        ports.PayoutService
	InvoiceSvc       ports.InvoiceService
	AuditSvc         ports.AuditService
	TokenSvc         ports.TokenService
	IdempotencyCache ports.IdempotencyCache // nil = Idempotency-Key ignored
	RateLimiter      ports.RateLimiter      // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	Metrics          *metrics.Recorder // nil = no /metrics endpoint
	Logger           zerolog.Logger
	Options          RouterOptions
}

// RouterOptions carries the HTTP-facing configuration.
type RouterOptions struct {
	Mode           string // gin mode; defaults to release
	MaxBodyBytes   int64
	AllowedOrigins []string
	RateLimit      middleware.RateLimitRule
	IdempotencyTTL time.Duration
	RequireActor   bool
	DefaultActor   string
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Options.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	maxBody := deps.Options.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(cors.New(corsConfig(deps.Options.AllowedOrigins)))
	r.Use(middleware.MaxBodySize(maxBody))

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// API documentation
	docs := r.Group("/docs")
	{
		docs.GET("", SwaggerUI)
		docs.GET("/openapi.yaml", SwaggerSpec)
	}

	// Mutating routes share the rate limit and the idempotency replay.
	mutating := []gin.HandlerFunc{}
	if deps.RateLimiter != nil && deps.Options.RateLimit.Limit > 0 {
		mutating = append(mutating, middleware.RateLimiter(deps.RateLimiter, "mutations", deps.Options.RateLimit, deps.Logger))
	}
	if deps.IdempotencyCache != nil {
		ttl := deps.Options.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		mutating = append(mutating, middleware.Idempotency(deps.IdempotencyCache, ttl, deps.Logger))
	}
	write := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), h)
	}

	api := r.Group("/api", middleware.Actor(deps.TokenSvc, middleware.ActorOptions{
		Required: deps.Options.RequireActor,
		Default:  deps.Options.DefaultActor,
	}))

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	viewWallet := middleware.AuditView(deps.AuditSvc, domain.AuditActionWalletView, domain.TargetWallet, "userId")
	wallets := api.Group("/wallets")
	{
		wallets.GET("", walletHandler.ListWallets)
		wallets.POST("", write(walletHandler.OpenWallet)...)
		wallets.POST("/:userId/credit", write(walletHandler.Credit)...)
		wallets.POST("/:userId/debit", write(walletHandler.Debit)...)
		wallets.POST("/:userId/payout-balance/credit", write(walletHandler.CreditPayoutBalance)...)
		wallets.POST("/:userId/payout-balance/debit", write(walletHandler.DebitPayoutBalance)...)
		wallets.GET("/:userId/balance", viewWallet, walletHandler.GetBalance)
		wallets.GET("/:userId/transactions", viewWallet, walletHandler.ListTransactions)
		wallets.PATCH("/:userId/payout-settings", write(walletHandler.UpdatePayoutSettings)...)
	}

	escrowHandler := NewEscrowHandler(deps.EscrowSvc)
	escrow := api.Group("/escrow")
	{
		escrow.POST("/create", write(escrowHandler.Create)...)
		escrow.GET("", escrowHandler.List)
		escrow.GET("/:id", escrowHandler.GetByOrderID)
		escrow.POST("/:id/release", write(escrowHandler.Release)...)
		escrow.PATCH("/:id/status", write(escrowHandler.UpdateStatus)...)
	}

	payoutHandler := NewPayoutHandler(deps.PayoutSvc)
	payouts := api.Group("/payouts")
	{
		payouts.GET("", payoutHandler.List)
		payouts.POST("/request", write(payoutHandler.Request)...)
		payouts.GET("/:id", payoutHandler.Get)
		payouts.PATCH("/:id/status", write(payoutHandler.UpdateStatus)...)
	}

	invoiceHandler := NewInvoiceHandler(deps.InvoiceSvc)
	invoices := api.Group("/invoices")
	{
		invoices.GET("", invoiceHandler.List)
		invoices.POST("/generate", write(invoiceHandler.Generate)...)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.PATCH("/:id", write(invoiceHandler.UpdateStatus)...)
	}

	auditHandler := NewAuditHandler(deps.AuditSvc)
	audit := api.Group("/audit-logs")
	{
		audit.GET("", auditHandler.List)
		audit.GET("/stats", auditHandler.Stats)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderIdempotencyKey, middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, middleware.HeaderReplayed, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
