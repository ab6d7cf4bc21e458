package dto

import (
	"time"

	"marketplace-ledger/internal/core/domain"
)

// ---- Wallets ----

// OpenWalletRequest is the body of POST /wallets.
type OpenWalletRequest struct {
	UserID    string `json:"userId" binding:"required,max=100,safe_id"`
	StoreID   string `json:"storeId" binding:"omitempty,max=100,safe_id"`
	StoreType string `json:"storeType" binding:"omitempty,oneof=connected popup"`
}

// BalanceChangeRequest is the body of the credit and debit endpoints.
type BalanceChangeRequest struct {
	StoreID     string  `json:"storeId" binding:"omitempty,max=100,safe_id"`
	Amount      Amount  `json:"amount"`
	Category    string  `json:"category" binding:"omitempty,oneof=fulfillment top_up payout customer_payment refund adjustment platform_fee"`
	Description string  `json:"description" binding:"required,max=500"`
	OrderID     *string `json:"orderId" binding:"omitempty,max=100,safe_id"`
	FromPending bool    `json:"fromPending"`
}

type BankAccountRequest struct {
	AccountHolderName string `json:"accountHolderName" binding:"required,max=200"`
	AccountNumber     string `json:"accountNumber" binding:"required,min=4,max=34"`
	RoutingNumber     string `json:"routingNumber" binding:"omitempty,max=34"`
	AccountType       string `json:"accountType" binding:"omitempty,oneof=checking savings"`
	BankName          string `json:"bankName" binding:"omitempty,max=200"`
	Country           string `json:"country" binding:"omitempty,len=2"`
	Currency          string `json:"currency" binding:"omitempty,len=3"`
}

type AutoRechargeRequest struct {
	Enabled          bool   `json:"enabled"`
	Amount           Amount `json:"amount"`
	TriggerThreshold Amount `json:"triggerThreshold"`
}

// PayoutSettingsRequest is the body of PATCH /wallets/:userId/payout-settings.
type PayoutSettingsRequest struct {
	StoreID             string               `json:"storeId" binding:"omitempty,max=100,safe_id"`
	BankAccount         *BankAccountRequest  `json:"bankAccount"`
	PaypalEmail         *string              `json:"paypalEmail" binding:"omitempty,email"`
	PayoutSchedule      *string              `json:"payoutSchedule" binding:"omitempty,oneof=monthly on_demand"`
	MinimumPayoutAmount *Amount              `json:"minimumPayoutAmount"`
	AutoRecharge        *AutoRechargeRequest `json:"autoRecharge"`
	LowBalanceThreshold *Amount              `json:"lowBalanceThreshold"`
}

type BalanceResponse struct {
	Balance              Amount `json:"balance"`
	PayoutBalance        Amount `json:"payoutBalance"`
	PendingPayoutBalance Amount `json:"pendingPayoutBalance"`
	LifetimeEarnings     Amount `json:"lifetimeEarnings"`
	Currency             string `json:"currency"`
}

type BankAccountResponse struct {
	AccountHolderName string `json:"accountHolderName"`
	AccountLast4      string `json:"accountLast4"`
	RoutingNumber     string `json:"routingNumber,omitempty"`
	AccountType       string `json:"accountType"`
	BankName          string `json:"bankName,omitempty"`
	Country           string `json:"country"`
	Currency          string `json:"currency"`
}

type PayoutSettingsResponse struct {
	BankAccount         *BankAccountResponse `json:"bankAccount,omitempty"`
	PaypalEmail         string               `json:"paypalEmail,omitempty"`
	PayoutSchedule      string               `json:"payoutSchedule"`
	MinimumPayoutAmount Amount               `json:"minimumPayoutAmount"`
}

type WalletStatsResponse struct {
	TotalTopUps          Amount     `json:"totalTopUps"`
	TotalSpent           Amount     `json:"totalSpent"`
	TotalPayoutsReceived Amount     `json:"totalPayoutsReceived"`
	LastTopUpAt          *time.Time `json:"lastTopUpAt,omitempty"`
	LastPayoutAt         *time.Time `json:"lastPayoutAt,omitempty"`
	LastTransactionAt    *time.Time `json:"lastTransactionAt,omitempty"`
}

type AutoRechargeResponse struct {
	Enabled          bool   `json:"enabled"`
	Amount           Amount `json:"amount"`
	TriggerThreshold Amount `json:"triggerThreshold"`
}

type WalletResponse struct {
	ID                   string                  `json:"id"`
	UserID               string                  `json:"userId"`
	StoreID              string                  `json:"storeId,omitempty"`
	StoreType            string                  `json:"storeType"`
	Currency             string                  `json:"currency"`
	Balance              Amount                  `json:"balance"`
	PayoutBalance        Amount                  `json:"payoutBalance"`
	PendingPayoutBalance Amount                  `json:"pendingPayoutBalance"`
	LifetimeEarnings     Amount                  `json:"lifetimeEarnings"`
	LowBalanceThreshold  Amount                  `json:"lowBalanceThreshold"`
	PayoutSettings       *PayoutSettingsResponse `json:"payoutSettings,omitempty"`
	AutoRecharge         AutoRechargeResponse    `json:"autoRecharge"`
	Status               string                  `json:"status"`
	Stats                WalletStatsResponse     `json:"stats"`
	CreatedAt            time.Time               `json:"createdAt"`
	UpdatedAt            time.Time               `json:"updatedAt"`
}

type TransactionResponse struct {
	ID                  string    `json:"id"`
	TransactionID       string    `json:"transactionId"`
	WalletID            string    `json:"walletId"`
	UserID              string    `json:"userId"`
	StoreID             string    `json:"storeId,omitempty"`
	Category            string    `json:"category"`
	Type                string    `json:"type"`
	Amount              Amount    `json:"amount"`
	BalanceBefore       Amount    `json:"balanceBefore"`
	BalanceAfter        Amount    `json:"balanceAfter"`
	AffectsBalance      string    `json:"affectsBalance"`
	OrderID             *string   `json:"orderId,omitempty"`
	PayoutID            *string   `json:"payoutId,omitempty"`
	EscrowTransactionID *string   `json:"escrowTransactionId,omitempty"`
	Status              string    `json:"status"`
	Description         string    `json:"description"`
	AdminID             string    `json:"adminId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	CompletedAt         time.Time `json:"completedAt"`
}

// LedgerResultResponse is returned by every balance mutation.
type LedgerResultResponse struct {
	NewBalance  Amount              `json:"newBalance"`
	Wallet      WalletResponse      `json:"wallet"`
	Transaction TransactionResponse `json:"transaction"`
	LowBalance  bool                `json:"lowBalance,omitempty"`
}

type TransactionPageResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextCursor   string                `json:"nextCursor,omitempty"`
}

// ---- Escrow ----

// CreateEscrowRequest is the body of POST /escrow/create.
type CreateEscrowRequest struct {
	OrderID               string  `json:"orderId" binding:"required,max=100,safe_id"`
	StoreID               string  `json:"storeId" binding:"required,max=100,safe_id"`
	UserID                string  `json:"userId" binding:"required,max=100,safe_id"`
	CustomerPaymentAmount Amount  `json:"customerPaymentAmount"`
	FulfillmentCost       Amount  `json:"fulfillmentCost"`
	PlatformFee           Amount  `json:"platformFee"`
	StorePayout           Amount  `json:"storePayout"`
	CustomerPaymentStatus string  `json:"customerPaymentStatus" binding:"omitempty,oneof=pending captured refunded failed"`
	PaymentRef            *string `json:"paymentRef" binding:"omitempty,max=200"`
}

// EscrowStatusRequest is the body of PATCH /escrow/:id/status.
type EscrowStatusRequest struct {
	CustomerPaymentStatus    *string `json:"customerPaymentStatus" binding:"omitempty,oneof=pending captured refunded failed"`
	FulfillmentPaymentStatus *string `json:"fulfillmentPaymentStatus" binding:"omitempty,oneof=pending completed failed"`
}

type EscrowResponse struct {
	ID                       string     `json:"id"`
	OrderID                  string     `json:"orderId"`
	StoreID                  string     `json:"storeId"`
	UserID                   string     `json:"userId"`
	CustomerPaymentAmount    Amount     `json:"customerPaymentAmount"`
	FulfillmentCost          Amount     `json:"fulfillmentCost"`
	PlatformFee              Amount     `json:"platformFee"`
	StorePayout              Amount     `json:"storePayout"`
	CustomerPaymentStatus    string     `json:"customerPaymentStatus"`
	FulfillmentPaymentStatus string     `json:"fulfillmentPaymentStatus"`
	PayoutStatus             string     `json:"payoutStatus"`
	PaymentRef               *string    `json:"paymentRef,omitempty"`
	PayoutID                 *string    `json:"payoutId,omitempty"`
	ReleasedToPayoutAt       *time.Time `json:"releasedToPayoutAt,omitempty"`
	PaidOutAt                *time.Time `json:"paidOutAt,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

type ReleaseResponse struct {
	Escrow          EscrowResponse       `json:"escrow"`
	Transaction     *TransactionResponse `json:"transaction,omitempty"`
	Balances        *BalanceResponse     `json:"balances,omitempty"`
	AlreadyReleased bool                 `json:"alreadyReleased"`
}

// ---- Payouts ----

// PayoutRequest is the body of POST /payouts/request.
type PayoutRequest struct {
	UserID       string `json:"userId" binding:"required,max=100,safe_id"`
	StoreID      string `json:"storeId" binding:"omitempty,max=100,safe_id"`
	Amount       Amount `json:"amount"`
	PayoutMethod string `json:"payoutMethod" binding:"required,oneof=bank_transfer paypal"`
}

// PayoutStatusRequest is the body of PATCH /payouts/:id/status.
type PayoutStatusRequest struct {
	Status        string  `json:"status" binding:"required,oneof=pending processing completed failed cancelled"`
	FailureReason string  `json:"failureReason" binding:"max=500"`
	ExternalRef   *string `json:"externalRef" binding:"omitempty,max=200"`
}

type PayoutDestinationResponse struct {
	BankAccount *BankAccountResponse `json:"bankAccount,omitempty"`
	PaypalEmail string               `json:"paypalEmail,omitempty"`
}

type PayoutResponse struct {
	ID            string                    `json:"id"`
	PayoutID      string                    `json:"payoutId"`
	WalletID      string                    `json:"walletId"`
	UserID        string                    `json:"userId"`
	StoreID       string                    `json:"storeId"`
	Amount        Amount                    `json:"amount"`
	Currency      string                    `json:"currency"`
	PayoutMethod  string                    `json:"payoutMethod"`
	Destination   PayoutDestinationResponse `json:"destination"`
	Status        string                    `json:"status"`
	OrderIDs      []string                  `json:"orderIds"`
	TransactionID string                    `json:"transactionId"`
	ScheduledDate time.Time                 `json:"scheduledDate"`
	ProcessedDate *time.Time                `json:"processedDate,omitempty"`
	CompletedDate *time.Time                `json:"completedDate,omitempty"`
	FailureReason *string                   `json:"failureReason,omitempty"`
	ExternalRef   *string                   `json:"externalRef,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	UpdatedAt     time.Time                 `json:"updatedAt"`
}

type PayoutRequestResponse struct {
	Payout   PayoutResponse  `json:"payout"`
	Balances BalanceResponse `json:"balances"`
}

// ---- Invoices ----

type InvoiceItemRequest struct {
	ProductID   string `json:"productId" binding:"required,max=100"`
	ProductName string `json:"productName" binding:"required,max=200"`
	Quantity    int64  `json:"quantity" binding:"required,gt=0"`
	Price       Amount `json:"price"`
	Total       Amount `json:"total"`
}

// GenerateInvoiceRequest is the body of POST /invoices/generate.
type GenerateInvoiceRequest struct {
	OrderID  string               `json:"orderId" binding:"required,max=100,safe_id"`
	BuyerID  string               `json:"buyerId" binding:"required,max=100,safe_id"`
	SellerID string               `json:"sellerId" binding:"required,max=100,safe_id"`
	Items    []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	Subtotal Amount               `json:"subtotal"`
	Tax      Amount               `json:"tax"`
	Total    Amount               `json:"total"`
	PDFURL   *string              `json:"pdfUrl" binding:"omitempty,safe_url"`
}

// InvoiceStatusRequest is the body of PATCH /invoices/:id.
type InvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending paid unpaid cancelled"`
}

type InvoiceItemResponse struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Price       Amount `json:"price"`
	Total       Amount `json:"total"`
}

type InvoiceResponse struct {
	ID        string                `json:"id"`
	OrderID   string                `json:"orderId"`
	BuyerID   string                `json:"buyerId"`
	SellerID  string                `json:"sellerId"`
	Items     []InvoiceItemResponse `json:"items"`
	Subtotal  Amount                `json:"subtotal"`
	Tax       Amount                `json:"tax"`
	Total     Amount                `json:"total"`
	Status    string                `json:"status"`
	PDFURL    *string               `json:"pdfUrl,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// ---- Conversions ----

func NewBalanceResponse(b domain.Balances) BalanceResponse {
	return BalanceResponse{
		Balance:              Amount(b.Balance),
		PayoutBalance:        Amount(b.PayoutBalance),
		PendingPayoutBalance: Amount(b.PendingPayoutBalance),
		LifetimeEarnings:     Amount(b.LifetimeEarnings),
		Currency:             b.Currency,
	}
}

func newBankAccountResponse(b *domain.BankAccount) *BankAccountResponse {
	if b == nil {
		return nil
	}
	return &BankAccountResponse{
		AccountHolderName: b.AccountHolderName,
		AccountLast4:      b.AccountLast4,
		RoutingNumber:     b.RoutingNumber,
		AccountType:       b.AccountType,
		BankName:          b.BankName,
		Country:           b.Country,
		Currency:          b.Currency,
	}
}

// NewWalletResponse never exposes the sealed account number.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	resp := WalletResponse{
		ID:                   w.ID.String(),
		UserID:               w.UserID,
		StoreID:              w.StoreID,
		StoreType:            string(w.StoreType),
		Currency:             w.Currency,
		Balance:              Amount(w.Balance),
		PayoutBalance:        Amount(w.PayoutBalance),
		PendingPayoutBalance: Amount(w.PendingPayoutBalance),
		LifetimeEarnings:     Amount(w.LifetimeEarnings),
		LowBalanceThreshold:  Amount(w.LowBalanceThreshold),
		AutoRecharge: AutoRechargeResponse{
			Enabled:          w.AutoRecharge.Enabled,
			Amount:           Amount(w.AutoRecharge.Amount),
			TriggerThreshold: Amount(w.AutoRecharge.TriggerThreshold),
		},
		Status: string(w.Status),
		Stats: WalletStatsResponse{
			TotalTopUps:          Amount(w.Stats.TotalTopUps),
			TotalSpent:           Amount(w.Stats.TotalSpent),
			TotalPayoutsReceived: Amount(w.Stats.TotalPayoutsReceived),
			LastTopUpAt:          w.Stats.LastTopUpAt,
			LastPayoutAt:         w.Stats.LastPayoutAt,
			LastTransactionAt:    w.Stats.LastTransactionAt,
		},
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if s := w.PayoutSettings; s != nil {
		resp.PayoutSettings = &PayoutSettingsResponse{
			BankAccount:         newBankAccountResponse(s.BankAccount),
			PaypalEmail:         s.PaypalEmail,
			PayoutSchedule:      string(s.Schedule),
			MinimumPayoutAmount: Amount(s.MinimumPayoutAmount),
		}
	}
	return resp
}

func NewWalletList(wallets []domain.Wallet) []WalletResponse {
	out := make([]WalletResponse, 0, len(wallets))
	for i := range wallets {
		out = append(out, NewWalletResponse(&wallets[i]))
	}
	return out
}

func NewTransactionResponse(t *domain.WalletTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:             t.ID.String(),
		TransactionID:  t.TransactionNumber,
		WalletID:       t.WalletID.String(),
		UserID:         t.UserID,
		StoreID:        t.StoreID,
		Category:       string(t.Category),
		Type:           string(t.Type),
		Amount:         Amount(t.Amount),
		BalanceBefore:  Amount(t.BalanceBefore),
		BalanceAfter:   Amount(t.BalanceAfter),
		AffectsBalance: string(t.AffectsBalance),
		OrderID:        t.OrderID,
		Status:         string(t.Status),
		Description:    t.Description,
		AdminID:        t.ActorID,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}
	if t.PayoutID != nil {
		s := t.PayoutID.String()
		resp.PayoutID = &s
	}
	if t.EscrowTransactionID != nil {
		s := t.EscrowTransactionID.String()
		resp.EscrowTransactionID = &s
	}
	return resp
}

func NewTransactionList(txns []domain.WalletTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

func NewEscrowResponse(e *domain.EscrowTransaction) EscrowResponse {
	resp := EscrowResponse{
		ID:                       e.ID.String(),
		OrderID:                  e.OrderID,
		StoreID:                  e.StoreID,
		UserID:                   e.UserID,
		CustomerPaymentAmount:    Amount(e.CustomerPaymentAmount),
		FulfillmentCost:          Amount(e.FulfillmentCost),
		PlatformFee:              Amount(e.PlatformFee),
		StorePayout:              Amount(e.StorePayout),
		CustomerPaymentStatus:    string(e.CustomerPaymentStatus),
		FulfillmentPaymentStatus: string(e.FulfillmentPaymentStatus),
		PayoutStatus:             string(e.PayoutStatus),
		PaymentRef:               e.PaymentRef,
		ReleasedToPayoutAt:       e.ReleasedAt,
		PaidOutAt:                e.PaidOutAt,
		CreatedAt:                e.CreatedAt,
		UpdatedAt:                e.UpdatedAt,
	}
	if e.PayoutID != nil {
		s := e.PayoutID.String()
		resp.PayoutID = &s
	}
	return resp
}

func NewEscrowList(escrows []domain.EscrowTransaction) []EscrowResponse {
	out := make([]EscrowResponse, 0, len(escrows))
	for i := range escrows {
		out = append(out, NewEscrowResponse(&escrows[i]))
	}
	return out
}

func NewPayoutResponse(p *domain.Payout) PayoutResponse {
	orderIDs := p.OrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}
	return PayoutResponse{
		ID:           p.ID.String(),
		PayoutID:     p.PayoutNumber,
		WalletID:     p.WalletID.String(),
		UserID:       p.UserID,
		StoreID:      p.StoreID,
		Amount:       Amount(p.Amount),
		Currency:     p.Currency,
		PayoutMethod: string(p.Method),
		Destination: PayoutDestinationResponse{
			BankAccount: newBankAccountResponse(p.Destination.BankAccount),
			PaypalEmail: p.Destination.PaypalEmail,
		},
		Status:        string(p.Status),
		OrderIDs:      orderIDs,
		TransactionID: p.TransactionID.String(),
		ScheduledDate: p.ScheduledAt,
		ProcessedDate: p.ProcessedAt,
		CompletedDate: p.CompletedAt,
		FailureReason: p.FailureReason,
		ExternalRef:   p.ExternalRef,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func NewPayoutList(payouts []domain.Payout) []PayoutResponse {
	out := make([]PayoutResponse, 0, len(payouts))
	for i := range payouts {
		out = append(out, NewPayoutResponse(&payouts[i]))
	}
	return out
}

func NewInvoiceResponse(inv *domain.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, InvoiceItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       Amount(it.Price),
			Total:       Amount(it.Total),
		})
	}
	return InvoiceResponse{
		ID:        inv.ID.String(),
		OrderID:   inv.OrderID,
		BuyerID:   inv.BuyerID,
		SellerID:  inv.SellerID,
		Items:     items,
		Subtotal:  Amount(inv.Subtotal),
		Tax:       Amount(inv.Tax),
		Total:     Amount(inv.Total),
		Status:    string(inv.Status),
		PDFURL:    inv.PDFURL,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}

func NewInvoiceList(invoices []domain.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, NewInvoiceResponse(&invoices[i]))
	}
	return out
}

// InvoiceItems converts request items to domain items.
func (r *GenerateInvoiceRequest) InvoiceItems() []domain.InvoiceItem {
	items := make([]domain.InvoiceItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.InvoiceItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price.Minor(),
			Total:       it.Total.Minor(),
		})
	}
	return items
}
