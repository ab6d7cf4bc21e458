package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
	PayoutMethodPaypal       PayoutMethod = "paypal"
)

func (m PayoutMethod) Valid() bool {
	return m == PayoutMethodBankTransfer || m == PayoutMethodPaypal
}

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusFailed, PayoutStatusCancelled},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusCancelled},
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for completed, failed and cancelled payouts.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed || s == PayoutStatusCancelled
}

// CanTransitionTo reports whether next is a legal forward step from s.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	return contains(payoutTransitions[s], next)
}

// ReturnsFunds reports whether entering s gives the amount back to the payout balance.
func (s PayoutStatus) ReturnsFunds() bool {
	return s == PayoutStatusFailed || s == PayoutStatusCancelled
}

// PayoutDestination is the snapshot of where the money was sent, taken at request time.
type PayoutDestination struct {
	BankAccount *BankAccount `json:"bankAccount,omitempty"`
	PaypalEmail string       `json:"paypalEmail,omitempty"`
}

// Payout is a transfer from a wallet's payout balance to an external rail.
// Amount never changes after creation.
type Payout struct {
	ID            uuid.UUID         `json:"id"`
	PayoutNumber  string            `json:"payoutId"`
	WalletID      uuid.UUID         `json:"walletId"`
	UserID        string            `json:"userId"`
	StoreID       string            `json:"storeId"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Method        PayoutMethod      `json:"payoutMethod"`
	Destination   PayoutDestination `json:"destination"`
	Status        PayoutStatus      `json:"status"`
	OrderIDs      []string          `json:"orderIds"`
	TransactionID uuid.UUID         `json:"transactionId"`
	ScheduledAt   time.Time         `json:"scheduledDate"`
	ProcessedAt   *time.Time        `json:"processedDate,omitempty"`
	CompletedAt   *time.Time        `json:"completedDate,omitempty"`
	FailureReason *string           `json:"failureReason,omitempty"`
	ExternalRef   *string           `json:"externalRef,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (p *Payout) WalletKey() WalletKey {
	return WalletKey{UserID: p.UserID, StoreID: p.StoreID}
}

// NewPayoutNumber returns a display reference like PO-202610-3FA9C.
func NewPayoutNumber(now time.Time) string {
	return fmt.Sprintf("PO-%s-%s", now.UTC().Format("200601"), randomHex(3)[:5])
}
