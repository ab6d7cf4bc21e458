package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletCreate         AuditAction = "wallet_create"
	AuditActionWalletCredit         AuditAction = "wallet_credit"
	AuditActionWalletDebit          AuditAction = "wallet_debit"
	AuditActionPayoutBalanceCredit  AuditAction = "payout_balance_credit"
	AuditActionPayoutBalanceDebit   AuditAction = "payout_balance_debit"
	AuditActionPendingHold          AuditAction = "pending_payout_hold"
	AuditActionPayoutSettingsUpdate AuditAction = "payout_settings_update"
	AuditActionEscrowCreate         AuditAction = "escrow_create"
	AuditActionEscrowRelease        AuditAction = "escrow_release"
	AuditActionEscrowStatusUpdate   AuditAction = "escrow_status_update"
	AuditActionPayoutRequest        AuditAction = "payout_request"
	AuditActionPayoutStatusUpdate   AuditAction = "payout_status_update"
	AuditActionInvoiceCreate        AuditAction = "invoice_create"
	AuditActionInvoiceUpdate        AuditAction = "invoice_update"
	AuditActionWalletView           AuditAction = "wallet_view"
	AuditActionInvoiceView          AuditAction = "invoice_view"
)

// Audit target types.
const (
	TargetWallet  = "wallet"
	TargetEscrow  = "escrow"
	TargetPayout  = "payout"
	TargetInvoice = "invoice"
)

// AuditLog records a single audited action. Entries are never updated.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	ActorID    string      `json:"adminId"`
	Action     AuditAction `json:"action"`
	TargetID   string      `json:"targetId"`
	TargetType string      `json:"targetType"`
	Details    string      `json:"details,omitempty"` // JSON string
	IPAddress  string      `json:"ipAddress,omitempty"`
	UserAgent  string      `json:"userAgent,omitempty"`
	CreatedAt  time.Time   `json:"timestamp"`
}

// AuditStats summarizes the audit trail.
type AuditStats struct {
	TotalLogs int64                 `json:"totalLogs"`
	ByAction  map[AuditAction]int64 `json:"byAction"`
	TopActors []ActorCount          `json:"topAdmins"`
}

type ActorCount struct {
	ActorID string `json:"adminId"`
	Count   int64  `json:"count"`
}

// Actor is the identity behind a request, recorded on audit entries.
type Actor struct {
	ID        string
	IPAddress string
	UserAgent string
}
