package domain

import (
	"time"

	"github.com/google/uuid"
)

type CustomerPaymentStatus string

const (
	CustomerPaymentPending  CustomerPaymentStatus = "pending"
	CustomerPaymentCaptured CustomerPaymentStatus = "captured"
	CustomerPaymentRefunded CustomerPaymentStatus = "refunded"
	CustomerPaymentFailed   CustomerPaymentStatus = "failed"
)

var customerPaymentTransitions = map[CustomerPaymentStatus][]CustomerPaymentStatus{
	CustomerPaymentPending:  {CustomerPaymentCaptured, CustomerPaymentFailed},
	CustomerPaymentCaptured: {CustomerPaymentRefunded},
}

func (s CustomerPaymentStatus) Valid() bool {
	switch s {
	case CustomerPaymentPending, CustomerPaymentCaptured, CustomerPaymentRefunded, CustomerPaymentFailed:
		return true
	}
	return false
}

func (s CustomerPaymentStatus) CanTransitionTo(next CustomerPaymentStatus) bool {
	return contains(customerPaymentTransitions[s], next)
}

type FulfillmentPaymentStatus string

const (
	FulfillmentPaymentPending   FulfillmentPaymentStatus = "pending"
	FulfillmentPaymentCompleted FulfillmentPaymentStatus = "completed"
	FulfillmentPaymentFailed    FulfillmentPaymentStatus = "failed"
)

func (s FulfillmentPaymentStatus) Valid() bool {
	switch s {
	case FulfillmentPaymentPending, FulfillmentPaymentCompleted, FulfillmentPaymentFailed:
		return true
	}
	return false
}

func (s FulfillmentPaymentStatus) CanTransitionTo(next FulfillmentPaymentStatus) bool {
	return s == FulfillmentPaymentPending && (next == FulfillmentPaymentCompleted || next == FulfillmentPaymentFailed)
}

// EscrowPayoutStatus only moves forward: in_escrow -> released -> paid_out.
type EscrowPayoutStatus string

const (
	EscrowInEscrow EscrowPayoutStatus = "in_escrow"
	EscrowReleased EscrowPayoutStatus = "released"
	EscrowPaidOut  EscrowPayoutStatus = "paid_out"
)

func (s EscrowPayoutStatus) Valid() bool {
	return s == EscrowInEscrow || s == EscrowReleased || s == EscrowPaidOut
}

// EscrowTransaction tracks the split of one order's customer payment.
type EscrowTransaction struct {
	ID                       uuid.UUID                `json:"id"`
	OrderID                  string                   `json:"orderId"`
	StoreID                  string                   `json:"storeId"`
	UserID                   string                   `json:"userId"`
	CustomerPaymentAmount    int64                    `json:"customerPaymentAmount"`
	FulfillmentCost          int64                    `json:"fulfillmentCost"`
	PlatformFee              int64                    `json:"platformFee"`
	StorePayout              int64                    `json:"storePayout"`
	CustomerPaymentStatus    CustomerPaymentStatus    `json:"customerPaymentStatus"`
	FulfillmentPaymentStatus FulfillmentPaymentStatus `json:"fulfillmentPaymentStatus"`
	PayoutStatus             EscrowPayoutStatus       `json:"payoutStatus"`
	PaymentRef               *string                  `json:"paymentRef,omitempty"`
	PayoutID                 *uuid.UUID               `json:"payoutId,omitempty"`
	ReleasedAt               *time.Time               `json:"releasedToPayoutAt,omitempty"`
	PaidOutAt                *time.Time               `json:"paidOutAt,omitempty"`
	CreatedAt                time.Time                `json:"createdAt"`
	UpdatedAt                time.Time                `json:"updatedAt"`
}

// SplitBalanced reports whether the three shares add up to the customer payment.
func (e *EscrowTransaction) SplitBalanced() bool {
	return e.FulfillmentCost+e.PlatformFee+e.StorePayout == e.CustomerPaymentAmount
}

// WalletKey returns the wallet that receives the store payout.
func (e *EscrowTransaction) WalletKey() WalletKey {
	return WalletKey{UserID: e.UserID, StoreID: e.StoreID}
}

// Releasable reports whether the store payout may move to the payout balance.
func (e *EscrowTransaction) Releasable() bool {
	return e.PayoutStatus == EscrowInEscrow &&
		e.CustomerPaymentStatus != CustomerPaymentRefunded &&
		e.CustomerPaymentStatus != CustomerPaymentFailed
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
