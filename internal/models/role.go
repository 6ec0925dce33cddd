package models

import "time"

// Role groups permissions and is assigned to accounts.
type Role struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Archived    bool      `db:"archived" json:"archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Permission is a named capability attached to roles.
type Permission struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Archived    bool      `db:"archived" json:"archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (r Role) WithArchived(archived bool) Role {
	r.Archived = archived
	return r
}

func (p Permission) WithArchived(archived bool) Permission {
	p.Archived = archived
	return p
}
