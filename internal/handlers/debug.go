package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notification-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, presence Presence, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, emitter, "INFO", "audit test")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence/:account_id", func(c *gin.Context) {
		accountID, ok := parseIDParam(c, "account_id")
		if !ok {
			return
		}
		_, online := presence.LookupBroadcast(accountID)
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "broadcast_online": online})
	})
}
