package models

// Event types pushed to connected clients.
const (
	EventSubscription = "subscription"
	EventBroadcast    = "broadcast"
)

// PushEvent is the payload written to a live connection.
type PushEvent struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}
