package models

import "time"

// MessageStatus is the read state of a message or a broadcast receipt.
type MessageStatus string

const (
	StatusUnread MessageStatus = "UNREAD"
	StatusRead   MessageStatus = "READ"
)

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	return s == StatusUnread || s == StatusRead
}

// SubscriptionMessage is a one-to-one message between two accounts.
type SubscriptionMessage struct {
	ID         int           `db:"id" json:"id"`
	SenderID   int           `db:"sender_id" json:"sender_id"`
	ReceiverID int           `db:"receiver_id" json:"receiver_id"`
	Message    string        `db:"message" json:"message"`
	Status     MessageStatus `db:"status" json:"status"`
	Archived   bool          `db:"archived" json:"archived"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// MessageFilter narrows message listing queries.
type MessageFilter struct {
	Status        MessageStatus
	Archived      bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// WithArchived returns a copy of m with the archived flag set.
func (m SubscriptionMessage) WithArchived(archived bool) SubscriptionMessage {
	m.Archived = archived
	return m
}
