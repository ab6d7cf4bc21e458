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

// EscrowHandler handles order escrow endpoints.
type EscrowHandler struct {
	escrowSvc ports.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrowSvc ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// Create handles POST /api/escrow/create.
func (h *EscrowHandler) Create(c *gin.Context) {
	var req dto.CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	escrow, err := h.escrowSvc.Create(c.Request.Context(), ports.CreateEscrowRequest{
		OrderID:               req.OrderID,
		StoreID:               req.StoreID,
		UserID:                req.UserID,
		CustomerPaymentAmount: req.CustomerPaymentAmount.Minor(),
		FulfillmentCost:       req.FulfillmentCost.Minor(),
		PlatformFee:           req.PlatformFee.Minor(),
		StorePayout:           req.StorePayout.Minor(),
		CustomerPaymentStatus: domain.CustomerPaymentStatus(req.CustomerPaymentStatus),
		PaymentRef:            req.PaymentRef,
		Actor:                 middleware.ActorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewEscrowResponse(escrow))
}

// List handles GET /api/escrow.
func (h *EscrowHandler) List(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	escrows, err := h.escrowSvc.List(c.Request.Context(), ports.EscrowFilter{
		UserID:       c.Query("userId"),
		StoreID:      c.Query("storeId"),
		PayoutStatus: domain.EscrowPayoutStatus(c.Query("payoutStatus")),
		Limit:        limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowList(escrows))
}

// GetByOrderID handles GET /api/escrow/:id where id is the order id.
func (h *EscrowHandler) GetByOrderID(c *gin.Context) {
	escrow, err := h.escrowSvc.GetByOrderID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}

// Release handles POST /api/escrow/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.escrowSvc.Release(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.ReleaseResponse{
		Escrow:          dto.NewEscrowResponse(result.Escrow),
		AlreadyReleased: result.AlreadyReleased,
	}
	if result.Transaction != nil {
		t := dto.NewTransactionResponse(result.Transaction)
		resp.Transaction = &t
	}
	if result.Wallet != nil {
		b := dto.NewBalanceResponse(result.Wallet.Balances())
		resp.Balances = &b
	}
	response.OK(c, resp)
}

// UpdateStatus handles PATCH /api/escrow/:id/status.
func (h *EscrowHandler) UpdateStatus(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EscrowStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	update := ports.EscrowStatusUpdate{EscrowID: id, Actor: middleware.ActorFrom(c)}
	if req.CustomerPaymentStatus != nil {
		s := domain.CustomerPaymentStatus(*req.CustomerPaymentStatus)
		update.CustomerPaymentStatus = &s
	}
	if req.FulfillmentPaymentStatus != nil {
		s := domain.FulfillmentPaymentStatus(*req.FulfillmentPaymentStatus)
		update.FulfillmentPaymentStatus = &s
	}

	escrow, err := h.escrowSvc.UpdatePaymentStatus(c.Request.Context(), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}
