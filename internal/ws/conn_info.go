package ws

import (
	"time"

	"notification-service/internal/observability"
)

// ConnInfo describes one websocket connection: who owns it and where it came from.
type ConnInfo struct {
	ConnID      string
	AccountID   int
	Meta        observability.RequestMeta
	TraceID     string
	ConnectedAt time.Time
}
