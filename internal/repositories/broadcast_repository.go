package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"notification-service/internal/archive"
	"notification-service/internal/db"
	"notification-service/internal/models"
)

var ErrReceiptNotFound = fmt.Errorf("receipt %w", archive.ErrNotFound)

var broadcastColumns = []string{"id", "sender_id", "message", "status", "count_unread", "count_read", "archived", "created_at"}

// BroadcastRepository defines interactions for broadcast messages and their
// per-receiver receipts.
type BroadcastRepository interface {
	Create(ctx context.Context, senderID int, text string, receiverIDs []int) (models.BroadcastMessage, error)
	SetReceiptStatus(ctx context.Context, messageID, receiverID int, to models.MessageStatus) (bool, error)
	FindByIDAndSender(ctx context.Context, id, senderID int) (models.BroadcastMessage, error)
	FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.ReceivedBroadcast, error)
	FindAllSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.BroadcastMessage, error)
	Receipts(ctx context.Context, messageID int) ([]models.BroadcastReceipt, error)
	DeleteBySender(ctx context.Context, id, senderID int) (bool, error)
	Active() archive.Store[models.BroadcastMessage]
	Archived() archive.Store[models.BroadcastMessage]
}

// BroadcastRepo is a sqlx-backed repository.
type BroadcastRepo struct {
	db       *sqlx.DB
	tx       *db.Transactor
	active   *tableStore[models.BroadcastMessage]
	archived *cascadeStore[models.BroadcastMessage]
}

// NewBroadcastRepo constructs BroadcastRepo.
func NewBroadcastRepo(database *sqlx.DB) *BroadcastRepo {
	return &BroadcastRepo{
		db:     database,
		tx:     db.NewTransactor(database),
		active: newTableStore[models.BroadcastMessage](database, "broadcast_messages", broadcastColumns, ErrMessageNotFound),
		archived: newCascadeStore[models.BroadcastMessage](database, "broadcast_messages_archived", broadcastColumns, ErrMessageNotFound,
			`DELETE FROM broadcast_receipts WHERE message_id=$1`),
	}
}

func (r *BroadcastRepo) Active() archive.Store[models.BroadcastMessage] { return r.active }

func (r *BroadcastRepo) Archived() archive.Store[models.BroadcastMessage] { return r.archived }

// Create stores the message and one unread receipt per receiver atomically.
func (r *BroadcastRepo) Create(ctx context.Context, senderID int, text string, receiverIDs []int) (models.BroadcastMessage, error) {
	var msg models.BroadcastMessage
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.db)
		if err := conn.QueryRowxContext(ctx, `INSERT INTO broadcast_messages (sender_id, message, status, count_unread, count_read)
            VALUES ($1, $2, $3, $4, 0)
            RETURNING id, sender_id, message, status, count_unread, count_read, archived, created_at`,
			senderID, text, models.StatusUnread, len(receiverIDs)).StructScan(&msg); err != nil {
			return err
		}
		if len(receiverIDs) == 0 {
			return nil
		}
		_, err := conn.ExecContext(ctx, `INSERT INTO broadcast_receipts (message_id, receiver_id, status)
            SELECT $1, rid, $3 FROM unnest($2::int[]) AS rid
            ON CONFLICT (message_id, receiver_id) DO NOTHING`, msg.ID, pq.Array(receiverIDs), models.StatusUnread)
		return err
	})
	if err != nil {
		return models.BroadcastMessage{}, err
	}
	msg.ReceiverIDs = receiverIDs
	return msg, nil
}

// SetReceiptStatus moves one receiver's receipt to status to and re-derives
// the parent's counts and status from the receipt rows. The parent row is
// locked first so concurrent receivers of the same broadcast serialize.
func (r *BroadcastRepo) SetReceiptStatus(ctx context.Context, messageID, receiverID int, to models.MessageStatus) (bool, error) {
	changed := false
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.db)
		var locked int
		err := conn.GetContext(ctx, &locked, `SELECT id FROM broadcast_messages WHERE id=$1 FOR UPDATE`, messageID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		res, err := conn.ExecContext(ctx, `UPDATE broadcast_receipts SET status=$3
            WHERE message_id=$1 AND receiver_id=$2 AND status<>$3`, messageID, receiverID, to)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		changed = true
		return r.recount(ctx, conn, messageID)
	})
	return changed, err
}

func (r *BroadcastRepo) recount(ctx context.Context, conn db.Executor, messageID int) error {
	var counts struct {
		Unread int `db:"unread"`
		Read   int `db:"read"`
	}
	if err := conn.GetContext(ctx, &counts, `SELECT
            COUNT(*) FILTER (WHERE status='UNREAD') AS unread,
            COUNT(*) FILTER (WHERE status='READ') AS read
        FROM broadcast_receipts WHERE message_id=$1`, messageID); err != nil {
		return err
	}
	status := models.StatusUnread
	if counts.Unread == 0 {
		status = models.StatusRead
	}
	_, err := conn.ExecContext(ctx, `UPDATE broadcast_messages SET count_unread=$2, count_read=$3, status=$4 WHERE id=$1`,
		messageID, counts.Unread, counts.Read, status)
	return err
}

// FindByIDAndSender returns a live or archived broadcast owned by senderID.
func (r *BroadcastRepo) FindByIDAndSender(ctx context.Context, id, senderID int) (models.BroadcastMessage, error) {
	var msg models.BroadcastMessage
	query := `SELECT id, sender_id, message, status, count_unread, count_read, archived, created_at FROM broadcast_messages
        WHERE id=$1 AND sender_id=$2
        UNION ALL
        SELECT id, sender_id, message, status, count_unread, count_read, archived, created_at FROM broadcast_messages_archived
        WHERE id=$1 AND sender_id=$2
        LIMIT 1`
	err := db.Conn(ctx, r.db).GetContext(ctx, &msg, query, id, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BroadcastMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// FindReceived lists live broadcasts addressed to receiverID with the
// receiver's own receipt status. filter.Archived is not supported here.
func (r *BroadcastRepo) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.ReceivedBroadcast, error) {
	var cond conditions
	cond.add("br.receiver_id=$%d", receiverID)
	cond.applyFilter("bm.", filter, "br.status")
	query := `SELECT bm.id, bm.sender_id, bm.message, br.status AS receipt_status, bm.created_at
        FROM broadcast_messages bm
        INNER JOIN broadcast_receipts br ON br.message_id = bm.id` + cond.where() + ` ORDER BY bm.created_at DESC, bm.id DESC`
	query += cond.page(page)

	msgs := make([]models.ReceivedBroadcast, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &msgs, query, cond.args...)
	return msgs, err
}

// FindAllSent lists broadcasts sent by senderID, newest first.
func (r *BroadcastRepo) FindAllSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.BroadcastMessage, error) {
	table := "broadcast_messages"
	if filter.Archived {
		table = "broadcast_messages_archived"
	}
	var cond conditions
	cond.add("sender_id=$%d", senderID)
	cond.applyFilter("", filter, "status")
	query := fmt.Sprintf(`SELECT id, sender_id, message, status, count_unread, count_read, archived, created_at FROM %s%s ORDER BY created_at DESC, id DESC`, table, cond.where())
	query += cond.page(page)

	msgs := make([]models.BroadcastMessage, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &msgs, query, cond.args...)
	return msgs, err
}

// Receipts returns every receipt row of a broadcast.
func (r *BroadcastRepo) Receipts(ctx context.Context, messageID int) ([]models.BroadcastReceipt, error) {
	receipts := make([]models.BroadcastReceipt, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &receipts, `SELECT message_id, receiver_id, status FROM broadcast_receipts WHERE message_id=$1 ORDER BY receiver_id`, messageID)
	return receipts, err
}

// DeleteBySender removes the live and archived copies and all receipts of a
// broadcast sent by senderID.
func (r *BroadcastRepo) DeleteBySender(ctx context.Context, id, senderID int) (bool, error) {
	var removed int64
	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.db)
		for _, table := range []string{"broadcast_messages", "broadcast_messages_archived"} {
			res, err := conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1 AND sender_id=$2`, table), id, senderID)
			if err != nil {
				return err
			}
			count, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += count
		}
		if removed == 0 {
			return nil
		}
		_, err := conn.ExecContext(ctx, `DELETE FROM broadcast_receipts WHERE message_id=$1`, id)
		return err
	})
	return removed > 0, err
}
