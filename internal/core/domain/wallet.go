package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoreType distinguishes a store connected to the platform from a pop-up store.
type StoreType string

const (
	StoreTypeConnected StoreType = "connected"
	StoreTypePopup     StoreType = "popup"
)

func (s StoreType) Valid() bool {
	return s == StoreTypeConnected || s == StoreTypePopup
}

type WalletStatus string

const WalletStatusActive WalletStatus = "active"

// PayoutSchedule controls when a store's payout balance is disbursed.
type PayoutSchedule string

const (
	PayoutScheduleMonthly  PayoutSchedule = "monthly"
	PayoutScheduleOnDemand PayoutSchedule = "on_demand"
)

func (s PayoutSchedule) Valid() bool {
	return s == PayoutScheduleMonthly || s == PayoutScheduleOnDemand
}

// WalletKey identifies a wallet. An empty StoreID is the user-level wallet.
type WalletKey struct {
	UserID  string `json:"userId"`
	StoreID string `json:"storeId,omitempty"`
}

func (k WalletKey) String() string {
	if k.StoreID == "" {
		return k.UserID
	}
	return fmt.Sprintf("%s/%s", k.UserID, k.StoreID)
}

// BankAccount is a payout destination. The account number is only ever
// held encrypted; AccountLast4 is the displayable part.
type BankAccount struct {
	AccountHolderName string `json:"accountHolderName"`
	AccountNumberEnc  string `json:"accountNumberEnc"`
	AccountLast4      string `json:"accountLast4"`
	RoutingNumber     string `json:"routingNumber"`
	AccountType       string `json:"accountType"`
	BankName          string `json:"bankName"`
	Country           string `json:"country"`
	Currency          string `json:"currency"`
}

// PayoutSettings is stored as a single JSON document on the wallet row.
type PayoutSettings struct {
	BankAccount         *BankAccount   `json:"bankAccount,omitempty"`
	PaypalEmail         string         `json:"paypalEmail,omitempty"`
	Schedule            PayoutSchedule `json:"payoutSchedule"`
	MinimumPayoutAmount int64          `json:"minimumPayoutAmount"`
	NextScheduledPayout *time.Time     `json:"nextScheduledPayout,omitempty"`
}

type AutoRecharge struct {
	Enabled          bool  `json:"enabled"`
	Amount           int64 `json:"amount"`
	TriggerThreshold int64 `json:"triggerThreshold"`
}

type WalletStats struct {
	TotalTopUps          int64      `json:"totalTopUps"`
	TotalSpent           int64      `json:"totalSpent"`
	TotalPayoutsReceived int64      `json:"totalPayoutsReceived"`
	LastTopUpAt          *time.Time `json:"lastTopUpAt,omitempty"`
	LastPayoutAt         *time.Time `json:"lastPayoutAt,omitempty"`
	LastTransactionAt    *time.Time `json:"lastTransactionAt,omitempty"`
}

// Wallet holds the balances of one (user, store) pair.
// Balance and PayoutBalance never go below zero in a committed state.
type Wallet struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               string          `json:"userId"`
	StoreID              string          `json:"storeId,omitempty"`
	StoreType            StoreType       `json:"storeType"`
	Currency             string          `json:"currency"`
	Balance              int64           `json:"balance"`
	PayoutBalance        int64           `json:"payoutBalance"`
	PendingPayoutBalance int64           `json:"pendingPayoutBalance"`
	LifetimeEarnings     int64           `json:"lifetimeEarnings"`
	LowBalanceThreshold  int64           `json:"lowBalanceThreshold"`
	PayoutSettings       *PayoutSettings `json:"payoutSettings,omitempty"`
	AutoRecharge         AutoRecharge    `json:"autoRecharge"`
	Status               WalletStatus    `json:"status"`
	Stats                WalletStats     `json:"stats"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// NewWallet returns an empty active wallet for key.
func NewWallet(key WalletKey, storeType StoreType, currency string, lowBalanceThreshold int64, now time.Time) *Wallet {
	if !storeType.Valid() {
		storeType = StoreTypeConnected
	}
	return &Wallet{
		ID:                  uuid.New(),
		UserID:              key.UserID,
		StoreID:             key.StoreID,
		StoreType:           storeType,
		Currency:            currency,
		LowBalanceThreshold: lowBalanceThreshold,
		Status:              WalletStatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (w *Wallet) Key() WalletKey {
	return WalletKey{UserID: w.UserID, StoreID: w.StoreID}
}

// Balances is the read-only balance view of a wallet.
type Balances struct {
	Balance              int64  `json:"balance"`
	PayoutBalance        int64  `json:"payoutBalance"`
	PendingPayoutBalance int64  `json:"pendingPayoutBalance"`
	LifetimeEarnings     int64  `json:"lifetimeEarnings"`
	Currency             string `json:"currency"`
}

func (w *Wallet) Balances() Balances {
	return Balances{
		Balance:              w.Balance,
		PayoutBalance:        w.PayoutBalance,
		PendingPayoutBalance: w.PendingPayoutBalance,
		LifetimeEarnings:     w.LifetimeEarnings,
		Currency:             w.Currency,
	}
}

// MinimumPayout returns the configured minimum, or fallback when the wallet has none.
func (w *Wallet) MinimumPayout(fallback int64) int64 {
	if w.PayoutSettings != nil && w.PayoutSettings.MinimumPayoutAmount > 0 {
		return w.PayoutSettings.MinimumPayoutAmount
	}
	return fallback
}

// IsLowBalance reports whether the fulfillment balance fell under the wallet threshold.
func (w *Wallet) IsLowBalance() bool {
	return w.LowBalanceThreshold > 0 && w.Balance < w.LowBalanceThreshold
}

// HasDestination reports whether payouts via method can be delivered.
func (w *Wallet) HasDestination(method PayoutMethod) bool {
	if w.PayoutSettings == nil {
		return false
	}
	switch method {
	case PayoutMethodBankTransfer:
		return w.PayoutSettings.BankAccount != nil && w.PayoutSettings.BankAccount.AccountNumberEnc != ""
	case PayoutMethodPaypal:
		return w.PayoutSettings.PaypalEmail != ""
	}
	return false
}
