package middleware

import (
	"net/http"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuditView records read access to a resource once the handler has answered
// successfully. The target id is taken from the named path parameter and the
// entry is written in the background.
func AuditView(auditSvc ports.AuditService, action domain.AuditAction, targetType, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		targetID := c.Param(param)
		if storeID := c.Query("storeId"); storeID != "" && targetType == domain.TargetWallet {
			targetID = domain.WalletKey{UserID: targetID, StoreID: storeID}.String()
		}

		auditSvc.Log(c.Request.Context(), ports.AuditEntry{
			Actor:      ActorFrom(c),
			Action:     action,
			TargetID:   targetID,
			TargetType: targetType,
			Details: map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			},
		})
	}
}
