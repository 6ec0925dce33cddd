package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"notification-service/internal/ws"
)

// Presence is the registry view exposed over HTTP.
type Presence interface {
	LookupBroadcast(receiverID int) (ws.Handle, bool)
	BroadcastReceivers() []int
}

// PresenceHandler lists accounts currently connected for broadcasts.
func PresenceHandler(presence Presence) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids := presence.BroadcastReceivers()
		c.JSON(http.StatusOK, gin.H{"account_ids": ids, "count": len(ids)})
	}
}
