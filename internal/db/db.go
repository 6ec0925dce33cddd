package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database connection.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

// Migrate applies the schema. Statements are idempotent.
func Migrate(db *sqlx.DB, logger *slog.Logger) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS subscription_messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            message TEXT NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'UNREAD',
            archived BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS subscription_messages_receiver_idx ON subscription_messages (receiver_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS subscription_messages_sender_idx ON subscription_messages (sender_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS subscription_messages_archived (
            id INT PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            message TEXT NOT NULL,
            status VARCHAR(16) NOT NULL,
            archived BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS broadcast_messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            message TEXT NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'UNREAD',
            count_unread INT NOT NULL DEFAULT 0,
            count_read INT NOT NULL DEFAULT 0,
            archived BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS broadcast_messages_archived (
            id INT PRIMARY KEY,
            sender_id INT NOT NULL,
            message TEXT NOT NULL,
            status VARCHAR(16) NOT NULL,
            count_unread INT NOT NULL DEFAULT 0,
            count_read INT NOT NULL DEFAULT 0,
            archived BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS broadcast_receipts (
            message_id INT NOT NULL,
            receiver_id INT NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'UNREAD',
            PRIMARY KEY (message_id, receiver_id)
        );`,
		`CREATE INDEX IF NOT EXISTS broadcast_receipts_receiver_idx ON broadcast_receipts (receiver_id);`,
		`CREATE TABLE IF NOT EXISTS roles (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            archived BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS roles_archived (
            id INT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            archived BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS permissions (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            archived BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS permissions_archived (
            id INT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            archived BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS account_roles (
            account_id INT NOT NULL,
            role_id INT NOT NULL,
            PRIMARY KEY (account_id, role_id)
        );`,
		`CREATE TABLE IF NOT EXISTS role_permissions (
            role_id INT NOT NULL,
            permission_id INT NOT NULL,
            PRIMARY KEY (role_id, permission_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	if logger != nil {
		logger.Info("database migrations applied", "count", len(migrations))
	}
	return nil
}
