package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionCategory classifies why a balance moved.
type TransactionCategory string

const (
	CategoryFulfillment     TransactionCategory = "fulfillment"
	CategoryTopUp           TransactionCategory = "top_up"
	CategoryPayout          TransactionCategory = "payout"
	CategoryCustomerPayment TransactionCategory = "customer_payment"
	CategoryRefund          TransactionCategory = "refund"
	CategoryAdjustment      TransactionCategory = "adjustment"
	CategoryPlatformFee     TransactionCategory = "platform_fee"
)

func (c TransactionCategory) Valid() bool {
	switch c {
	case CategoryFulfillment, CategoryTopUp, CategoryPayout, CategoryCustomerPayment,
		CategoryRefund, CategoryAdjustment, CategoryPlatformFee:
		return true
	}
	return false
}

// TransactionType is the direction of a balance movement.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// BalanceTarget names which wallet balance a transaction moved.
type BalanceTarget string

const (
	BalanceWallet BalanceTarget = "wallet"
	BalancePayout BalanceTarget = "payout"
	BalanceBoth   BalanceTarget = "both"
)

func (b BalanceTarget) Valid() bool {
	return b == BalanceWallet || b == BalancePayout || b == BalanceBoth
}

type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "completed"

// WalletTransaction is the immutable record of one balance mutation.
type WalletTransaction struct {
	ID                  uuid.UUID           `json:"id"`
	TransactionNumber   string              `json:"transactionId"`
	WalletID            uuid.UUID           `json:"walletId"`
	UserID              string              `json:"userId"`
	StoreID             string              `json:"storeId,omitempty"`
	Category            TransactionCategory `json:"category"`
	Type                TransactionType     `json:"type"`
	Amount              int64               `json:"amount"`
	BalanceBefore       int64               `json:"balanceBefore"`
	BalanceAfter        int64               `json:"balanceAfter"`
	AffectsBalance      BalanceTarget       `json:"affectsBalance"`
	OrderID             *string             `json:"orderId,omitempty"`
	PayoutID            *uuid.UUID          `json:"payoutId,omitempty"`
	EscrowTransactionID *uuid.UUID          `json:"escrowTransactionId,omitempty"`
	Status              TransactionStatus   `json:"status"`
	Description         string              `json:"description"`
	ActorID             string              `json:"adminId,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	CompletedAt         time.Time           `json:"completedAt"`
}

// Consistent reports whether BalanceAfter follows from BalanceBefore and Amount.
func (t *WalletTransaction) Consistent() bool {
	switch t.Type {
	case TransactionTypeCredit:
		return t.BalanceAfter == t.BalanceBefore+t.Amount
	case TransactionTypeDebit:
		return t.BalanceAfter == t.BalanceBefore-t.Amount
	}
	return false
}

// NewTransactionNumber returns a display reference like TXN-1A2B3C4D5E6F.
func NewTransactionNumber() string {
	return "TXN-" + randomHex(6)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
