package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"notification-service/internal/observability"
)

const wsRoutingKey = "ws_events.notifications"

// Envelope is the registration frame a client sends after connecting. A
// present SenderAccountID registers a subscription channel, otherwise a
// broadcast channel.
type Envelope struct {
	ReceiverAccountID int  `json:"receiverAccountId"`
	SenderAccountID   *int `json:"senderAccountId,omitempty"`
}

type reply struct {
	Type            string `json:"type"`
	Kind            string `json:"kind,omitempty"`
	SenderAccountID *int   `json:"senderAccountId,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Handler upgrades authenticated requests and binds the connection to the hub.
type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, logger: logger.With("component", "ws")}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and serves it until disconnect.
func (h *Handler) Handle(c *gin.Context) {
	accountID := c.GetInt("userID")
	if accountID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	ctx, span := otel.Tracer("notification-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "account_id", accountID, "error", err)
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		AccountID:   accountID,
		Meta:        observability.RequestMetaFrom(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	conn := NewConn(socket, info)
	if !h.hub.Attach(conn) {
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	observability.IncWSActive("notification")
	publishWSEvent(context.Background(), info, "ws_connect", "")
	h.logger.Info("websocket connected", "conn_id", info.ConnID, "account_id", accountID)

	go func() {
		if err := conn.WritePump(); err != nil {
			h.logger.Debug("websocket write failed", "conn_id", info.ConnID, "error", err)
		}
	}()
	go h.serve(conn)
}

func (h *Handler) serve(conn *Conn) {
	info := conn.Info()
	var closeReason string
	defer func() {
		_ = conn.Close()
		h.hub.Unregister(conn)
		observability.DecWSActive("notification")
		publishWSEvent(context.Background(), info, "ws_disconnect", closeReason)
		h.logger.Info("websocket disconnected", "conn_id", info.ConnID, "account_id", info.AccountID, "reason", closeReason)
	}()

	err := conn.ReadPump(func(frame []byte) {
		h.register(conn, frame)
	})
	if err != nil {
		closeReason = err.Error()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			publishWSEvent(context.Background(), info, "ws_error", closeReason)
		}
	}
}

// register applies one envelope frame. Identities other than the
// authenticated account are rejected.
func (h *Handler) register(conn *Conn, frame []byte) {
	info := conn.Info()
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.ReceiverAccountID == 0 {
		h.respond(conn, reply{Type: "error", Error: "invalid envelope"})
		return
	}
	if env.ReceiverAccountID != info.AccountID {
		h.respond(conn, reply{Type: "error", Error: "receiverAccountId does not match caller"})
		return
	}

	if env.SenderAccountID != nil {
		if !h.hub.RegisterSubscription(env.ReceiverAccountID, *env.SenderAccountID, conn) {
			h.logger.Debug("subscription channel already bound", "receiver_id", env.ReceiverAccountID, "sender_id", *env.SenderAccountID)
		}
		h.respond(conn, reply{Type: "registered", Kind: "subscription", SenderAccountID: env.SenderAccountID})
		return
	}
	if !h.hub.RegisterBroadcast(env.ReceiverAccountID, conn) {
		h.logger.Debug("broadcast channel already bound", "receiver_id", env.ReceiverAccountID)
	}
	h.respond(conn, reply{Type: "registered", Kind: "broadcast"})
}

func (h *Handler) respond(conn *Conn, r reply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := conn.Push(payload); err != nil {
		h.logger.Debug("websocket reply dropped", "conn_id", conn.ID(), "error", err)
	}
}

func publishWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent("notification", event)
	payload := map[string]any{
		"ws": map[string]any{
			"kind":        "notification",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.AccountID,
			"device_id": info.Meta.DeviceID,
			"ip":        info.Meta.IP,
		},
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.NewEvent("ws_events", event, payload), info.Meta.Headers(info.TraceID))
}
