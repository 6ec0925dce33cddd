package models

import "time"

// BroadcastMessage is a one-to-many message. CountUnread and CountRead are
// derived from the receipt rows and never mutated independently.
type BroadcastMessage struct {
	ID          int           `db:"id" json:"id"`
	SenderID    int           `db:"sender_id" json:"sender_id"`
	Message     string        `db:"message" json:"message"`
	Status      MessageStatus `db:"status" json:"status"`
	CountUnread int           `db:"count_unread" json:"count_unread"`
	CountRead   int           `db:"count_read" json:"count_read"`
	Archived    bool          `db:"archived" json:"archived"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	ReceiverIDs []int         `db:"-" json:"receiver_ids,omitempty"`
}

// BroadcastReceipt tracks one receiver's read state for a broadcast.
type BroadcastReceipt struct {
	MessageID  int           `db:"message_id" json:"message_id"`
	ReceiverID int           `db:"receiver_id" json:"receiver_id"`
	Status     MessageStatus `db:"status" json:"status"`
}

// ReceivedBroadcast is a broadcast as seen by one of its receivers.
type ReceivedBroadcast struct {
	ID            int           `db:"id" json:"id"`
	SenderID      int           `db:"sender_id" json:"sender_id"`
	Message       string        `db:"message" json:"message"`
	ReceiptStatus MessageStatus `db:"receipt_status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// WithArchived returns a copy of m with the archived flag set.
func (m BroadcastMessage) WithArchived(archived bool) BroadcastMessage {
	m.Archived = archived
	return m
}
