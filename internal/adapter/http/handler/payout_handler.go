package handler

import (
	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PayoutHandler handles payout endpoints.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// Request handles POST /api/payouts/request.
func (h *PayoutHandler) Request(c *gin.Context) {
	var req dto.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.payoutSvc.Request(c.Request.Context(), ports.PayoutRequest{
		Key:    domain.WalletKey{UserID: req.UserID, StoreID: req.StoreID},
		Amount: req.Amount.Minor(),
		Method: domain.PayoutMethod(req.PayoutMethod),
		Actor:  middleware.ActorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.PayoutRequestResponse{
		Payout:   dto.NewPayoutResponse(result.Payout),
		Balances: dto.NewBalanceResponse(result.Wallet.Balances()),
	})
}

// List handles GET /api/payouts.
func (h *PayoutHandler) List(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payouts, err := h.payoutSvc.List(c.Request.Context(), ports.PayoutFilter{
		UserID:  c.Query("userId"),
		StoreID: c.Query("storeId"),
		Status:  domain.PayoutStatus(c.Query("status")),
		Limit:   limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPayoutList(payouts))
}

// Get handles GET /api/payouts/:id. The id is the payout UUID or its PO- number.
func (h *PayoutHandler) Get(c *gin.Context) {
	payout, err := h.payoutSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPayoutResponse(payout))
}

// UpdateStatus handles PATCH /api/payouts/:id/status.
func (h *PayoutHandler) UpdateStatus(c *gin.Context) {
	var req dto.PayoutStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.payoutSvc.UpdateStatus(c.Request.Context(), ports.PayoutStatusUpdate{
		Ref:           c.Param("id"),
		Status:        domain.PayoutStatus(req.Status),
		FailureReason: req.FailureReason,
		ExternalRef:   req.ExternalRef,
		Actor:         middleware.ActorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPayoutResponse(payout))
}
