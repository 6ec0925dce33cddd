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

var ErrRoleNotFound = fmt.Errorf("role %w", archive.ErrNotFound)

var roleColumns = []string{"id", "name", "description", "archived", "created_at"}

// RoleRepository abstracts role persistence and account assignments.
type RoleRepository interface {
	Create(ctx context.Context, name, description string) (models.Role, error)
	AssignToAccount(ctx context.Context, accountID, roleID int) error
	UnassignFromAccount(ctx context.Context, accountID, roleID int) (bool, error)
	AccountsWithRole(ctx context.Context, roleID int) ([]int, error)
	RolesForAccount(ctx context.Context, accountID int) ([]models.Role, error)
	LockArchivedPermissions(ctx context.Context, roleID int) error
	Active() archive.Store[models.Role]
	Archived() archive.Store[models.Role]
}

// RoleRepo is a sqlx implementation of RoleRepository.
type RoleRepo struct {
	db       *sqlx.DB
	tx       *db.Transactor
	active   *tableStore[models.Role]
	archived *cascadeStore[models.Role]
}

// NewRoleRepo constructs a RoleRepo.
func NewRoleRepo(database *sqlx.DB) *RoleRepo {
	return &RoleRepo{
		db:       database,
		tx:       db.NewTransactor(database),
		active:   newTableStore[models.Role](database, "roles", roleColumns, ErrRoleNotFound),
		archived: newCascadeStore[models.Role](database, "roles_archived", roleColumns, ErrRoleNotFound,
			`DELETE FROM role_permissions WHERE role_id=$1`),
	}
}

func (r *RoleRepo) Active() archive.Store[models.Role] { return r.active }

func (r *RoleRepo) Archived() archive.Store[models.Role] { return r.archived }

// Create inserts an active role.
func (r *RoleRepo) Create(ctx context.Context, name, description string) (models.Role, error) {
	var role models.Role
	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2)
        RETURNING id, name, description, archived, created_at`, name, description).StructScan(&role)
	return role, err
}

// AssignToAccount links an active role to an account. The role row is share
// locked so a concurrent archive waits for the assignment to commit.
func (r *RoleRepo) AssignToAccount(ctx context.Context, accountID, roleID int) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.db)
		var id int
		err := conn.GetContext(ctx, &id, `SELECT id FROM roles WHERE id=$1 FOR SHARE`, roleID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoleNotFound
		}
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, `INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2)
            ON CONFLICT (account_id, role_id) DO NOTHING`, accountID, roleID)
		return err
	})
}

// UnassignFromAccount removes the link and reports whether it existed.
func (r *RoleRepo) UnassignFromAccount(ctx context.Context, accountID, roleID int) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM account_roles WHERE account_id=$1 AND role_id=$2`, accountID, roleID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// AccountsWithRole lists accounts currently holding roleID.
func (r *RoleRepo) AccountsWithRole(ctx context.Context, roleID int) ([]int, error) {
	ids := make([]int, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &ids, `SELECT account_id FROM account_roles WHERE role_id=$1 ORDER BY account_id`, roleID)
	return ids, err
}

// RolesForAccount lists the active roles held by an account.
func (r *RoleRepo) RolesForAccount(ctx context.Context, accountID int) ([]models.Role, error) {
	roles := make([]models.Role, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &roles, `SELECT r.id, r.name, r.description, r.archived, r.created_at
        FROM roles r INNER JOIN account_roles ar ON ar.role_id = r.id
        WHERE ar.account_id=$1 ORDER BY r.id`, accountID)
	return roles, err
}

// LockArchivedPermissions share locks the archived permissions linked to
// roleID. Called inside a role recovery, it makes a concurrent permission
// purge either finish first or see the recovered role.
func (r *RoleRepo) LockArchivedPermissions(ctx context.Context, roleID int) error {
	ids := make([]int, 0)
	return db.Conn(ctx, r.db).SelectContext(ctx, &ids, `SELECT p.id FROM permissions_archived p
        INNER JOIN role_permissions rp ON rp.permission_id = p.id
        WHERE rp.role_id=$1 ORDER BY p.id FOR SHARE OF p`, roleID)
}
