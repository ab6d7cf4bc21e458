package handler

import (
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditHandler serves the audit trail.
type AuditHandler struct {
	auditSvc ports.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditSvc ports.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List handles GET /api/audit-logs.
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	from, err := queryTime(c, "startDate", false)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := queryTime(c, "endDate", true)
	if err != nil {
		response.Error(c, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		response.Error(c, apperror.Validation("endDate must not be before startDate"))
		return
	}

	logs, err := h.auditSvc.List(c.Request.Context(), ports.AuditFilter{
		ActorID:    c.Query("adminId"),
		Action:     domain.AuditAction(c.Query("action")),
		TargetType: c.Query("targetType"),
		From:       from,
		To:         to,
		Limit:      limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs)
}

// Stats handles GET /api/audit-logs/stats.
func (h *AuditHandler) Stats(c *gin.Context) {
	stats, err := h.auditSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
