package handler

import (
	"context"
	"fmt"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet and balance endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// ListWallets handles GET /api/wallets.
func (h *WalletHandler) ListWallets(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	storeType := domain.StoreType(c.Query("storeType"))
	if storeType != "" && !storeType.Valid() {
		response.Error(c, apperror.Validation(fmt.Sprintf("invalid storeType %q", storeType)))
		return
	}

	wallets, err := h.ledgerSvc.ListWallets(c.Request.Context(), ports.WalletFilter{
		UserID:    c.Query("userId"),
		StoreID:   c.Query("storeId"),
		StoreType: storeType,
		Limit:     limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletList(wallets))
}

// OpenWallet handles POST /api/wallets: returns the wallet for the key, creating it if needed.
func (h *WalletHandler) OpenWallet(c *gin.Context) {
	var req dto.OpenWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.ledgerSvc.GetOrCreateWallet(c.Request.Context(), ports.OpenWalletRequest{
		Key:       domain.WalletKey{UserID: req.UserID, StoreID: req.StoreID},
		StoreType: domain.StoreType(req.StoreType),
		Actor:     middleware.ActorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Credit handles POST /api/wallets/:userId/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.change(c, h.ledgerSvc.Credit)
}

// Debit handles POST /api/wallets/:userId/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.change(c, h.ledgerSvc.Debit)
}

// CreditPayoutBalance handles POST /api/wallets/:userId/payout-balance/credit.
func (h *WalletHandler) CreditPayoutBalance(c *gin.Context) {
	h.change(c, h.ledgerSvc.CreditPayoutBalance)
}

// DebitPayoutBalance handles POST /api/wallets/:userId/payout-balance/debit.
func (h *WalletHandler) DebitPayoutBalance(c *gin.Context) {
	h.change(c, h.ledgerSvc.DebitPayoutBalance)
}

type ledgerOp func(ctx context.Context, req ports.BalanceChange) (*ports.LedgerResult, error)

func (h *WalletHandler) change(c *gin.Context, op ledgerOp) {
	var req dto.BalanceChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := op(c.Request.Context(), ports.BalanceChange{
		Key:         domain.WalletKey{UserID: c.Param("userId"), StoreID: req.StoreID},
		Amount:      req.Amount.Minor(),
		Category:    domain.TransactionCategory(req.Category),
		Description: req.Description,
		Actor:       middleware.ActorFrom(c),
		OrderID:     req.OrderID,
		FromPending: req.FromPending,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet := dto.NewWalletResponse(result.Wallet)
	newBalance := wallet.Balance
	if result.Transaction.AffectsBalance == domain.BalancePayout {
		newBalance = wallet.PayoutBalance
	}
	response.OK(c, dto.LedgerResultResponse{
		NewBalance:  newBalance,
		Wallet:      wallet,
		Transaction: dto.NewTransactionResponse(result.Transaction),
		LowBalance:  result.LowBalance,
	})
}

// GetBalance handles GET /api/wallets/:userId/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	balances, err := h.ledgerSvc.GetBalance(c.Request.Context(), domain.WalletKey{
		UserID:  c.Param("userId"),
		StoreID: c.Query("storeId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewBalanceResponse(*balances))
}

// ListTransactions handles GET /api/wallets/:userId/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	cursor, err := dto.DecodeCursor(c.Query("cursor"))
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.TransactionListParams{
		UserID:  c.Param("userId"),
		StoreID: optionalQuery(c, "storeId"),
		After:   cursor,
		Limit:   limit,
	}
	if raw := optionalQuery(c, "category"); raw != nil {
		category := domain.TransactionCategory(*raw)
		if !category.Valid() {
			response.Error(c, apperror.Validation(fmt.Sprintf("invalid category %q", *raw)))
			return
		}
		params.Category = &category
	}
	if raw := optionalQuery(c, "affectsBalance"); raw != nil {
		target := domain.BalanceTarget(*raw)
		if !target.Valid() {
			response.Error(c, apperror.Validation(fmt.Sprintf("invalid affectsBalance %q", *raw)))
			return
		}
		params.AffectsBalance = &target
	}

	page, err := h.ledgerSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.TransactionPageResponse{
		Transactions: dto.NewTransactionList(page.Transactions),
		NextCursor:   dto.EncodeCursor(page.Next),
	})
}

// UpdatePayoutSettings handles PATCH /api/wallets/:userId/payout-settings.
func (h *WalletHandler) UpdatePayoutSettings(c *gin.Context) {
	var req dto.PayoutSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	update := ports.PayoutSettingsUpdate{
		Key:                 domain.WalletKey{UserID: c.Param("userId"), StoreID: req.StoreID},
		PaypalEmail:         req.PaypalEmail,
		MinimumPayoutAmount: dto.MinorPtr(req.MinimumPayoutAmount),
		LowBalanceThreshold: dto.MinorPtr(req.LowBalanceThreshold),
		Actor:               middleware.ActorFrom(c),
	}
	if b := req.BankAccount; b != nil {
		update.BankAccount = &ports.BankAccountInput{
			AccountHolderName: b.AccountHolderName,
			AccountNumber:     b.AccountNumber,
			RoutingNumber:     b.RoutingNumber,
			AccountType:       b.AccountType,
			BankName:          b.BankName,
			Country:           b.Country,
			Currency:          b.Currency,
		}
	}
	if req.PayoutSchedule != nil {
		schedule := domain.PayoutSchedule(*req.PayoutSchedule)
		update.Schedule = &schedule
	}
	if ar := req.AutoRecharge; ar != nil {
		update.AutoRecharge = &domain.AutoRecharge{
			Enabled:          ar.Enabled,
			Amount:           ar.Amount.Minor(),
			TriggerThreshold: ar.TriggerThreshold.Minor(),
		}
	}

	wallet, err := h.ledgerSvc.UpdatePayoutSettings(c.Request.Context(), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}
