package ports

import (
	"context"
	"errors"
	"time"

	"marketplace-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// ErrDuplicate is returned by repositories when a unique key already exists.
var ErrDuplicate = errors.New("duplicate record")

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's transaction; the ForUpdate
// variants hold the row lock until that transaction ends.
type WalletRepository interface {
	// CreateIfAbsent inserts wallet unless its key is taken. Reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) (bool, error)
	GetByKey(ctx context.Context, key domain.WalletKey) (*domain.Wallet, error)
	GetByKeyForUpdate(ctx context.Context, tx pgx.Tx, key domain.WalletKey) (*domain.Wallet, error)
	List(ctx context.Context, filter WalletFilter) ([]domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	UpdateSettings(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// WalletFilter narrows wallet listings. Zero values mean "any".
type WalletFilter struct {
	UserID    string
	StoreID   string
	StoreType domain.StoreType
	Limit     int
}

// TransactionRepository persists immutable wallet transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.WalletTransaction) error
	List(ctx context.Context, params TransactionListParams) ([]domain.WalletTransaction, error)
}

// TransactionListParams holds filters and keyset pagination for a user's transactions.
// Results are ordered newest first; After resumes strictly after the given position.
type TransactionListParams struct {
	UserID         string
	StoreID        *string
	Category       *domain.TransactionCategory
	AffectsBalance *domain.BalanceTarget
	After          *TransactionCursor
	Limit          int
}

// TransactionCursor is the position of the last transaction of a page.
type TransactionCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// EscrowRepository persists escrow transactions.
type EscrowRepository interface {
	// Create returns ErrDuplicate when the order already has an escrow.
	Create(ctx context.Context, tx pgx.Tx, escrow *domain.EscrowTransaction) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.EscrowTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.EscrowTransaction, error)
	List(ctx context.Context, filter EscrowFilter) ([]domain.EscrowTransaction, error)
	Update(ctx context.Context, tx pgx.Tx, escrow *domain.EscrowTransaction) error
	// AssignToPayout attaches the wallet's released, unassigned escrows to payoutID, oldest first,
	// while their store payouts sum to at most amount. It returns their order ids.
	AssignToPayout(ctx context.Context, tx pgx.Tx, key domain.WalletKey, payoutID uuid.UUID, amount int64) ([]string, error)
	// MarkPaidOut moves the payout's released escrows to paid_out.
	MarkPaidOut(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID, at time.Time) (int64, error)
	// DetachFromPayout frees the payout's escrows so a later payout can claim them.
	DetachFromPayout(ctx context.Context, tx pgx.Tx, payoutID uuid.UUID) (int64, error)
}

type EscrowFilter struct {
	UserID       string
	StoreID      string
	PayoutStatus domain.EscrowPayoutStatus
	Limit        int
}

// PayoutRepository persists payouts. ref is either the payout UUID or its PO- number.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payout *domain.Payout) error
	GetByRef(ctx context.Context, ref string) (*domain.Payout, error)
	GetByRefForUpdate(ctx context.Context, tx pgx.Tx, ref string) (*domain.Payout, error)
	List(ctx context.Context, filter PayoutFilter) ([]domain.Payout, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, payout *domain.Payout) error
}

type PayoutFilter struct {
	UserID  string
	StoreID string
	Status  domain.PayoutStatus
	Limit   int
}

// InvoiceRepository persists invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]domain.Invoice, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.InvoiceStatus, at time.Time) error
}

type InvoiceFilter struct {
	BuyerID  string
	SellerID string
	OrderID  string
	Status   domain.InvoiceStatus
	Limit    int
}

// AuditRepository defines persistence for the append-only audit trail.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx pgx.Tx, log *domain.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditLog, error)
	Stats(ctx context.Context) (*domain.AuditStats, error)
}

type AuditFilter struct {
	ActorID    string
	Action     domain.AuditAction
	TargetType string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
