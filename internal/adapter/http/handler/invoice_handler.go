package handler

import (
	"fmt"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/adapter/http/middleware"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	invoiceSvc ports.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceSvc ports.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceSvc: invoiceSvc}
}

// Generate handles POST /api/invoices/generate.
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var req dto.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	invoice, err := h.invoiceSvc.Generate(c.Request.Context(), ports.GenerateInvoiceRequest{
		OrderID:  req.OrderID,
		BuyerID:  req.BuyerID,
		SellerID: req.SellerID,
		Items:    req.InvoiceItems(),
		Subtotal: req.Subtotal.Minor(),
		Tax:      req.Tax.Minor(),
		Total:    req.Total.Minor(),
		PDFURL:   req.PDFURL,
		Actor:    middleware.ActorFrom(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewInvoiceResponse(invoice))
}

// List handles GET /api/invoices.
func (h *InvoiceHandler) List(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := domain.InvoiceStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		response.Error(c, apperror.Validation(fmt.Sprintf("invalid status %q", status)))
		return
	}

	invoices, err := h.invoiceSvc.List(c.Request.Context(), ports.InvoiceFilter{
		BuyerID:  c.Query("buyerId"),
		SellerID: c.Query("sellerId"),
		OrderID:  c.Query("orderId"),
		Status:   status,
		Limit:    limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewInvoiceList(invoices))
}

// Get handles GET /api/invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	invoice, err := h.invoiceSvc.Get(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewInvoiceResponse(invoice))
}

// UpdateStatus handles PATCH /api/invoices/:id.
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.InvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	invoice, err := h.invoiceSvc.UpdateStatus(c.Request.Context(), id, domain.InvoiceStatus(req.Status), middleware.ActorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewInvoiceResponse(invoice))
}
