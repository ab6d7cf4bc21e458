package ports

import (
	"context"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// EncryptionService seals secrets stored at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService issues and validates actor tokens.
type TokenService interface {
	Generate(actorID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	ActorID   string
	ExpiresAt time.Time
}

// IdempotencyCache stores replayable responses keyed by Idempotency-Key.
type IdempotencyCache interface {
	// Reserve marks key as in progress. Returns false if the key is already reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// --- Service Ports (Business Logic) ---

// LedgerService owns every balance mutation.
type LedgerService interface {
	GetOrCreateWallet(ctx context.Context, req OpenWalletRequest) (*domain.Wallet, error)
	Credit(ctx context.Context, req BalanceChange) (*LedgerResult, error)
	Debit(ctx context.Context, req BalanceChange) (*LedgerResult, error)
	CreditPayoutBalance(ctx context.Context, req BalanceChange) (*LedgerResult, error)
	DebitPayoutBalance(ctx context.Context, req BalanceChange) (*LedgerResult, error)
	GetBalance(ctx context.Context, key domain.WalletKey) (*domain.Balances, error)
	ListWallets(ctx context.Context, filter WalletFilter) ([]domain.Wallet, error)
	ListTransactions(ctx context.Context, params TransactionListParams) (*TransactionPage, error)
	UpdatePayoutSettings(ctx context.Context, req PayoutSettingsUpdate) (*domain.Wallet, error)

	// ApplyTx performs one mutation inside the caller's transaction.
	ApplyTx(ctx context.Context, tx pgx.Tx, mutation Mutation) (*LedgerResult, error)
	// HoldPendingTx adds amount to the wallet's pending payout balance, creating the wallet if needed.
	HoldPendingTx(ctx context.Context, tx pgx.Tx, key domain.WalletKey, amount int64, actor domain.Actor, orderID string) (*domain.Wallet, error)
}

// OpenWalletRequest holds input for getOrCreateWallet.
type OpenWalletRequest struct {
	Key       domain.WalletKey
	StoreType domain.StoreType
	Actor     domain.Actor
}

// BalanceChange holds validated input for a single credit or debit.
type BalanceChange struct {
	Key         domain.WalletKey
	Amount      int64
	Category    domain.TransactionCategory
	Description string
	Actor       domain.Actor
	OrderID     *string
	// FromPending also draws the amount from the pending payout balance (payout balance ops only).
	FromPending bool
}

// Mutation is the full description of a ledger write.
type Mutation struct {
	Key                 domain.WalletKey
	Target              domain.BalanceTarget // wallet or payout
	Type                domain.TransactionType
	Amount              int64
	Category            domain.TransactionCategory
	Description         string
	Actor               domain.Actor
	OrderID             *string
	PayoutID            *uuid.UUID
	EscrowTransactionID *uuid.UUID
	FromPending         bool
	CountEarnings       bool
	AutoCreate          bool
}

// LedgerResult is the committed outcome of a mutation.
type LedgerResult struct {
	Wallet      *domain.Wallet
	Transaction *domain.WalletTransaction
	LowBalance  bool
}

// TransactionPage is one page of a transaction listing.
type TransactionPage struct {
	Transactions []domain.WalletTransaction
	Next         *TransactionCursor
}

// PayoutSettingsUpdate replaces a wallet's payout settings. Nil fields are left unchanged.
type PayoutSettingsUpdate struct {
	Key                 domain.WalletKey
	BankAccount         *BankAccountInput
	PaypalEmail         *string
	Schedule            *domain.PayoutSchedule
	MinimumPayoutAmount *int64
	AutoRecharge        *domain.AutoRecharge
	LowBalanceThreshold *int64
	Actor               domain.Actor
}

// BankAccountInput carries the plaintext account number before encryption.
type BankAccountInput struct {
	AccountHolderName string
	AccountNumber     string
	RoutingNumber     string
	AccountType       string
	BankName          string
	Country           string
	Currency          string
}

// EscrowService owns the order payment split and its release.
type EscrowService interface {
	Create(ctx context.Context, req CreateEscrowRequest) (*domain.EscrowTransaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.EscrowTransaction, error)
	List(ctx context.Context, filter EscrowFilter) ([]domain.EscrowTransaction, error)
	Release(ctx context.Context, escrowID uuid.UUID, actor domain.Actor) (*ReleaseResult, error)
	UpdatePaymentStatus(ctx context.Context, req EscrowStatusUpdate) (*domain.EscrowTransaction, error)
}

type CreateEscrowRequest struct {
	OrderID               string
	StoreID               string
	UserID                string
	CustomerPaymentAmount int64
	FulfillmentCost       int64
	PlatformFee           int64
	StorePayout           int64
	CustomerPaymentStatus domain.CustomerPaymentStatus
	PaymentRef            *string
	Actor                 domain.Actor
}

// ReleaseResult reports a release. Transaction is nil when the escrow was already released.
type ReleaseResult struct {
	Escrow          *domain.EscrowTransaction
	Wallet          *domain.Wallet
	Transaction     *domain.WalletTransaction
	AlreadyReleased bool
}

type EscrowStatusUpdate struct {
	EscrowID                 uuid.UUID
	CustomerPaymentStatus    *domain.CustomerPaymentStatus
	FulfillmentPaymentStatus *domain.FulfillmentPaymentStatus
	Actor                    domain.Actor
}

// PayoutService owns the payout lifecycle.
type PayoutService interface {
	Request(ctx context.Context, req PayoutRequest) (*PayoutResult, error)
	UpdateStatus(ctx context.Context, req PayoutStatusUpdate) (*domain.Payout, error)
	Get(ctx context.Context, ref string) (*domain.Payout, error)
	List(ctx context.Context, filter PayoutFilter) ([]domain.Payout, error)
}

type PayoutRequest struct {
	Key    domain.WalletKey
	Amount int64
	Method domain.PayoutMethod
	Actor  domain.Actor
}

type PayoutResult struct {
	Payout *domain.Payout
	Wallet *domain.Wallet
}

type PayoutStatusUpdate struct {
	Ref           string
	Status        domain.PayoutStatus
	FailureReason string
	ExternalRef   *string
	Actor         domain.Actor
}

// InvoiceService handles invoice CRUD.
type InvoiceService interface {
	Generate(ctx context.Context, req GenerateInvoiceRequest) (*domain.Invoice, error)
	Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus, actor domain.Actor) (*domain.Invoice, error)
}

type GenerateInvoiceRequest struct {
	OrderID  string
	BuyerID  string
	SellerID string
	Items    []domain.InvoiceItem
	Subtotal int64
	Tax      int64
	Total    int64
	PDFURL   *string
	Actor    domain.Actor
}

// AuditService records and queries the audit trail.
type AuditService interface {
	// Record writes the entry synchronously.
	Record(ctx context.Context, entry AuditEntry) error
	// Log writes the entry in the background; failures are only logged.
	Log(ctx context.Context, entry AuditEntry)
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditLog, error)
	Stats(ctx context.Context) (*domain.AuditStats, error)
}

// AuditEntry is the input for one audit record. Details is marshaled to JSON.
type AuditEntry struct {
	Actor      domain.Actor
	Action     domain.AuditAction
	TargetID   string
	TargetType string
	Details    any
}
