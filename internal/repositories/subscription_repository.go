package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"notification-service/internal/archive"
	"notification-service/internal/db"
	"notification-service/internal/models"
)

var ErrMessageNotFound = fmt.Errorf("message %w", archive.ErrNotFound)

var subscriptionColumns = []string{"id", "sender_id", "receiver_id", "message", "status", "archived", "created_at"}

// SubscriptionRepository defines interactions for one-to-one messages.
type SubscriptionRepository interface {
	Create(ctx context.Context, senderID, receiverID int, text string) (models.SubscriptionMessage, error)
	FindForAccount(ctx context.Context, id, accountID int) (models.SubscriptionMessage, error)
	UpdateStatus(ctx context.Context, id, receiverID int, from, to models.MessageStatus) (bool, error)
	DeleteBySender(ctx context.Context, id, senderID int) (bool, error)
	FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error)
	FindSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error)
	Active() archive.Store[models.SubscriptionMessage]
	Archived() archive.Store[models.SubscriptionMessage]
}

// SubscriptionRepo is a sqlx-backed repository.
type SubscriptionRepo struct {
	db       *sqlx.DB
	active   *tableStore[models.SubscriptionMessage]
	archived *tableStore[models.SubscriptionMessage]
}

// NewSubscriptionRepo constructs SubscriptionRepo.
func NewSubscriptionRepo(database *sqlx.DB) *SubscriptionRepo {
	return &SubscriptionRepo{
		db:       database,
		active:   newTableStore[models.SubscriptionMessage](database, "subscription_messages", subscriptionColumns, ErrMessageNotFound),
		archived: newTableStore[models.SubscriptionMessage](database, "subscription_messages_archived", subscriptionColumns, ErrMessageNotFound),
	}
}

func (r *SubscriptionRepo) Active() archive.Store[models.SubscriptionMessage] { return r.active }

func (r *SubscriptionRepo) Archived() archive.Store[models.SubscriptionMessage] { return r.archived }

// Create stores an unread message.
func (r *SubscriptionRepo) Create(ctx context.Context, senderID, receiverID int, text string) (models.SubscriptionMessage, error) {
	var msg models.SubscriptionMessage
	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, `INSERT INTO subscription_messages (sender_id, receiver_id, message, status, archived)
        VALUES ($1, $2, $3, $4, FALSE)
        RETURNING id, sender_id, receiver_id, message, status, archived, created_at`, senderID, receiverID, text, models.StatusUnread).
		StructScan(&msg)
	return msg, err
}

// FindForAccount returns a live or archived message the account sent or received.
func (r *SubscriptionRepo) FindForAccount(ctx context.Context, id, accountID int) (models.SubscriptionMessage, error) {
	var msg models.SubscriptionMessage
	query := `SELECT id, sender_id, receiver_id, message, status, archived, created_at FROM subscription_messages
        WHERE id=$1 AND (sender_id=$2 OR receiver_id=$2)
        UNION ALL
        SELECT id, sender_id, receiver_id, message, status, archived, created_at FROM subscription_messages_archived
        WHERE id=$1 AND (sender_id=$2 OR receiver_id=$2)
        LIMIT 1`
	err := db.Conn(ctx, r.db).GetContext(ctx, &msg, query, id, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SubscriptionMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateStatus flips the status of a live message addressed to receiverID
// when it is currently in from. It reports whether a row changed.
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, id, receiverID int, from, to models.MessageStatus) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE subscription_messages SET status=$4
        WHERE id=$1 AND receiver_id=$2 AND status=$3`, id, receiverID, from, to)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// DeleteBySender removes the live and archived copies of a message sent by senderID.
func (r *SubscriptionRepo) DeleteBySender(ctx context.Context, id, senderID int) (bool, error) {
	conn := db.Conn(ctx, r.db)
	var removed int64
	for _, table := range []string{"subscription_messages", "subscription_messages_archived"} {
		res, err := conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1 AND sender_id=$2`, table), id, senderID)
		if err != nil {
			return false, err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		removed += count
	}
	return removed > 0, nil
}

// FindReceived lists messages addressed to receiverID, newest first.
func (r *SubscriptionRepo) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	return r.find(ctx, "receiver_id", receiverID, filter, page)
}

// FindSent lists messages sent by senderID, newest first.
func (r *SubscriptionRepo) FindSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	return r.find(ctx, "sender_id", senderID, filter, page)
}

func (r *SubscriptionRepo) find(ctx context.Context, ownerColumn string, ownerID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	table := "subscription_messages"
	if filter.Archived {
		table = "subscription_messages_archived"
	}
	var cond conditions
	cond.add(ownerColumn+"=$%d", ownerID)
	cond.applyFilter("", filter, "status")
	query := fmt.Sprintf(`SELECT id, sender_id, receiver_id, message, status, archived, created_at FROM %s%s ORDER BY created_at DESC, id DESC`, table, cond.where())
	query += cond.page(page)

	msgs := make([]models.SubscriptionMessage, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &msgs, query, cond.args...)
	return msgs, err
}
