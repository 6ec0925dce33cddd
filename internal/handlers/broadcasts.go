package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"notification-service/internal/models"
	"notification-service/internal/service"
	"notification-service/internal/telemetry"
)

// BroadcastService is the fan-out messaging core used by the handlers.
type BroadcastService interface {
	Forward(ctx context.Context, senderID int, receiverIDs []int, text string) (models.BroadcastMessage, error)
	MarkRead(ctx context.Context, id, receiverID int) (bool, error)
	MarkUnread(ctx context.Context, id, receiverID int) (bool, error)
	FindAllSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.BroadcastMessage, error)
	FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.ReceivedBroadcast, error)
	Get(ctx context.Context, id, senderID int) (service.BroadcastDetail, error)
	Delete(ctx context.Context, id, senderID int) (bool, error)
	Archive(ctx context.Context, id, senderID int) (models.BroadcastMessage, error)
	Recover(ctx context.Context, id, senderID int) (models.BroadcastMessage, error)
}

// BroadcastHandler exposes broadcast endpoints.
type BroadcastHandler struct {
	svc   BroadcastService
	audit *telemetry.AuditEmitter
}

// NewBroadcastHandler builds a BroadcastHandler.
func NewBroadcastHandler(svc BroadcastService, audit *telemetry.AuditEmitter) *BroadcastHandler {
	return &BroadcastHandler{svc: svc, audit: audit}
}

// Register mounts the routes on r.
func (h *BroadcastHandler) Register(r gin.IRouter) {
	r.POST("/broadcasts", h.Send)
	r.GET("/broadcasts/sent", h.ListSent)
	r.GET("/broadcasts/received", h.ListReceived)
	r.GET("/broadcasts/:id", h.Get)
	r.POST("/broadcasts/:id/read", h.MarkRead)
	r.POST("/broadcasts/:id/unread", h.MarkUnread)
	r.POST("/broadcasts/:id/archive", h.Archive)
	r.POST("/broadcasts/:id/recover", h.Recover)
	r.DELETE("/broadcasts/:id", h.Delete)
}

// Send fans a message out. Without receiver_ids it targets everyone
// currently connected for broadcasts.
func (h *BroadcastHandler) Send(c *gin.Context) {
	var req struct {
		ReceiverIDs []int  `json:"receiver_ids"`
		Message     string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Forward(c.Request.Context(), c.GetInt("userID"), req.ReceiverIDs, req.Message)
	if err != nil {
		respondError(c, err, "could not send broadcast")
		return
	}
	emitAudit(c, h.audit, "INFO", "Broadcast sent")
	c.JSON(http.StatusCreated, msg)
}

func (h *BroadcastHandler) ListSent(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	page, ok := parsePage(c)
	if !ok {
		return
	}
	msgs, err := h.svc.FindAllSent(c.Request.Context(), c.GetInt("userID"), filter, page)
	if err != nil {
		respondError(c, err, "failed to load broadcasts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcasts": msgs, "limit": page.Limit, "offset": page.Offset})
}

func (h *BroadcastHandler) ListReceived(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	page, ok := parsePage(c)
	if !ok {
		return
	}
	msgs, err := h.svc.FindReceived(c.Request.Context(), c.GetInt("userID"), filter, page)
	if err != nil {
		respondError(c, err, "failed to load broadcasts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcasts": msgs, "limit": page.Limit, "offset": page.Offset})
}

func (h *BroadcastHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "failed to load broadcast")
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *BroadcastHandler) MarkRead(c *gin.Context) {
	h.toggle(c, h.svc.MarkRead, models.StatusRead)
}

func (h *BroadcastHandler) MarkUnread(c *gin.Context) {
	h.toggle(c, h.svc.MarkUnread, models.StatusUnread)
}

func (h *BroadcastHandler) toggle(c *gin.Context, flip func(context.Context, int, int) (bool, error), to models.MessageStatus) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	changed, err := flip(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "could not update status")
		return
	}
	respondToggle(c, id, changed, to)
}

func (h *BroadcastHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.svc.Delete(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "broadcast delete failed")
		respondError(c, err, "could not delete")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "broadcast not found"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Broadcast deleted")
	c.Status(http.StatusNoContent)
}

func (h *BroadcastHandler) Archive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.svc.Archive(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "could not archive")
		return
	}
	emitAudit(c, h.audit, "INFO", "Broadcast archived")
	c.JSON(http.StatusOK, msg)
}

func (h *BroadcastHandler) Recover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.svc.Recover(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "could not recover")
		return
	}
	emitAudit(c, h.audit, "INFO", "Broadcast recovered")
	c.JSON(http.StatusOK, msg)
}
