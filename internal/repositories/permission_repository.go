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

var ErrPermissionNotFound = fmt.Errorf("permission %w", archive.ErrNotFound)

var permissionColumns = []string{"id", "name", "description", "archived", "created_at"}

// PermissionRepository abstracts permission persistence and role attachments.
type PermissionRepository interface {
	Create(ctx context.Context, name, description string) (models.Permission, error)
	AttachToRole(ctx context.Context, roleID, permissionID int) error
	DetachFromRole(ctx context.Context, roleID, permissionID int) (bool, error)
	RolesWithPermission(ctx context.Context, permissionID int) ([]int, error)
	PermissionsForRole(ctx context.Context, roleID int) ([]models.Permission, error)
	Active() archive.Store[models.Permission]
	Archived() archive.Store[models.Permission]
}

// PermissionRepo is a sqlx implementation of PermissionRepository.
type PermissionRepo struct {
	db       *sqlx.DB
	tx       *db.Transactor
	active   *tableStore[models.Permission]
	archived *cascadeStore[models.Permission]
}

// NewPermissionRepo constructs a PermissionRepo.
func NewPermissionRepo(database *sqlx.DB) *PermissionRepo {
	return &PermissionRepo{
		db:       database,
		tx:       db.NewTransactor(database),
		active:   newTableStore[models.Permission](database, "permissions", permissionColumns, ErrPermissionNotFound),
		archived: newCascadeStore[models.Permission](database, "permissions_archived", permissionColumns, ErrPermissionNotFound,
			`DELETE FROM role_permissions WHERE permission_id=$1`),
	}
}

func (r *PermissionRepo) Active() archive.Store[models.Permission] { return r.active }

func (r *PermissionRepo) Archived() archive.Store[models.Permission] { return r.archived }

// Create inserts an active permission.
func (r *PermissionRepo) Create(ctx context.Context, name, description string) (models.Permission, error) {
	var perm models.Permission
	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, `INSERT INTO permissions (name, description) VALUES ($1, $2)
        RETURNING id, name, description, archived, created_at`, name, description).StructScan(&perm)
	return perm, err
}

// AttachToRole links an active permission to an active role. Both rows are
// share locked for the duration of the insert.
func (r *PermissionRepo) AttachToRole(ctx context.Context, roleID, permissionID int) error {
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
		err = conn.GetContext(ctx, &id, `SELECT id FROM permissions WHERE id=$1 FOR SHARE`, permissionID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPermissionNotFound
		}
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
            ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
		return err
	})
}

// DetachFromRole removes the link and reports whether it existed.
func (r *PermissionRepo) DetachFromRole(ctx context.Context, roleID, permissionID int) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id=$1 AND permission_id=$2`, roleID, permissionID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// RolesWithPermission lists active roles that have permissionID attached.
// Links held by archived roles do not count.
func (r *PermissionRepo) RolesWithPermission(ctx context.Context, permissionID int) ([]int, error) {
	ids := make([]int, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &ids, `SELECT rp.role_id FROM role_permissions rp
        INNER JOIN roles r ON r.id = rp.role_id
        WHERE rp.permission_id=$1 ORDER BY rp.role_id`, permissionID)
	return ids, err
}

// PermissionsForRole lists the active permissions attached to a role.
func (r *PermissionRepo) PermissionsForRole(ctx context.Context, roleID int) ([]models.Permission, error) {
	perms := make([]models.Permission, 0)
	err := db.Conn(ctx, r.db).SelectContext(ctx, &perms, `SELECT p.id, p.name, p.description, p.archived, p.created_at
        FROM permissions p INNER JOIN role_permissions rp ON rp.permission_id = p.id
        WHERE rp.role_id=$1 ORDER BY p.id`, roleID)
	return perms, err
}
