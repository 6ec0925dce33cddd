package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"notification-service/internal/models"
	"notification-service/internal/telemetry"
)

// SubscriptionService is the one-to-one messaging core used by the handlers.
type SubscriptionService interface {
	Forward(ctx context.Context, senderID, receiverID int, text string) (models.SubscriptionMessage, error)
	MarkRead(ctx context.Context, id, receiverID int) (bool, error)
	MarkUnread(ctx context.Context, id, receiverID int) (bool, error)
	Delete(ctx context.Context, id, senderID int) (bool, error)
	Get(ctx context.Context, id, accountID int) (models.SubscriptionMessage, error)
	FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error)
	FindSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error)
	Archive(ctx context.Context, id, senderID int) (models.SubscriptionMessage, error)
	Recover(ctx context.Context, id, senderID int) (models.SubscriptionMessage, error)
}

// SubscriptionHandler exposes one-to-one message endpoints.
type SubscriptionHandler struct {
	svc   SubscriptionService
	audit *telemetry.AuditEmitter
}

// NewSubscriptionHandler builds a SubscriptionHandler.
func NewSubscriptionHandler(svc SubscriptionService, audit *telemetry.AuditEmitter) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, audit: audit}
}

// Register mounts the routes on r.
func (h *SubscriptionHandler) Register(r gin.IRouter) {
	r.POST("/subscriptions", h.Send)
	r.GET("/subscriptions/received", h.ListReceived)
	r.GET("/subscriptions/sent", h.ListSent)
	r.GET("/subscriptions/:id", h.Get)
	r.POST("/subscriptions/:id/read", h.MarkRead)
	r.POST("/subscriptions/:id/unread", h.MarkUnread)
	r.POST("/subscriptions/:id/archive", h.Archive)
	r.POST("/subscriptions/:id/recover", h.Recover)
	r.DELETE("/subscriptions/:id", h.Delete)
}

// Send stores a message to receiver_id and pushes it if they are online.
func (h *SubscriptionHandler) Send(c *gin.Context) {
	var req struct {
		ReceiverID int    `json:"receiver_id" binding:"required"`
		Message    string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Forward(c.Request.Context(), c.GetInt("userID"), req.ReceiverID, req.Message)
	if err != nil {
		respondError(c, err, "could not send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *SubscriptionHandler) ListReceived(c *gin.Context) {
	h.list(c, h.svc.FindReceived)
}

func (h *SubscriptionHandler) ListSent(c *gin.Context) {
	h.list(c, h.svc.FindSent)
}

func (h *SubscriptionHandler) list(c *gin.Context, find func(context.Context, int, models.MessageFilter, models.Page) ([]models.SubscriptionMessage, error)) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	page, ok := parsePage(c)
	if !ok {
		return
	}
	msgs, err := find(c.Request.Context(), c.GetInt("userID"), filter, page)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "limit": page.Limit, "offset": page.Offset})
}

func (h *SubscriptionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.svc.Get(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "failed to load message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *SubscriptionHandler) MarkRead(c *gin.Context) {
	h.toggle(c, h.svc.MarkRead, models.StatusRead)
}

func (h *SubscriptionHandler) MarkUnread(c *gin.Context) {
	h.toggle(c, h.svc.MarkUnread, models.StatusUnread)
}

func (h *SubscriptionHandler) toggle(c *gin.Context, flip func(context.Context, int, int) (bool, error), to models.MessageStatus) {
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

// Delete removes a message the caller sent, live or archived.
func (h *SubscriptionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	removed, err := h.svc.Delete(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "subscription delete failed")
		respondError(c, err, "could not delete")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	emitAudit(c, h.audit, "INFO", "Subscription message deleted")
	c.Status(http.StatusNoContent)
}

func (h *SubscriptionHandler) Archive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.svc.Archive(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "could not archive")
		return
	}
	emitAudit(c, h.audit, "INFO", "Subscription message archived")
	c.JSON(http.StatusOK, msg)
}

func (h *SubscriptionHandler) Recover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	msg, err := h.svc.Recover(c.Request.Context(), id, c.GetInt("userID"))
	if err != nil {
		respondError(c, err, "could not recover")
		return
	}
	emitAudit(c, h.audit, "INFO", "Subscription message recovered")
	c.JSON(http.StatusOK, msg)
}
