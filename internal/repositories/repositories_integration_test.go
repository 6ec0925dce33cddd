//go:build integration

package repositories

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-service/internal/archive"
	"notification-service/internal/db"
	"notification-service/internal/models"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	database, err := db.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database, nil))
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestBroadcastConcurrentReceipts(t *testing.T) {
	database := openTestDB(t)
	repo := NewBroadcastRepo(database)
	ctx := context.Background()

	receivers := make([]int, 40)
	for i := range receivers {
		receivers[i] = 1000 + i
	}
	msg, err := repo.Create(ctx, 1, "fan-out", receivers)
	require.NoError(t, err)
	assert.Equal(t, len(receivers), msg.CountUnread)

	var wg sync.WaitGroup
	for _, rid := range receivers {
		wg.Add(1)
		go func(rid int) {
			defer wg.Done()
			changed, err := repo.SetReceiptStatus(ctx, msg.ID, rid, models.StatusRead)
			if assert.NoError(t, err) {
				assert.True(t, changed)
			}
		}(rid)
	}
	wg.Wait()

	got, err := repo.FindByIDAndSender(ctx, msg.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CountUnread)
	assert.Equal(t, len(receivers), got.CountRead)
	assert.Equal(t, models.StatusRead, got.Status)

	changed, err := repo.SetReceiptStatus(ctx, msg.ID, receivers[0], models.StatusRead)
	require.NoError(t, err)
	assert.False(t, changed)

	removed, err := repo.DeleteBySender(ctx, msg.ID, 1)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestSubscriptionStatusTransition(t *testing.T) {
	database := openTestDB(t)
	repo := NewSubscriptionRepo(database)
	ctx := context.Background()

	msg, err := repo.Create(ctx, 1, 2, "hi")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, msg.Status)

	changed, err := repo.UpdateStatus(ctx, msg.ID, 2, models.StatusUnread, models.StatusRead)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatus(ctx, msg.ID, 2, models.StatusUnread, models.StatusRead)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.UpdateStatus(ctx, msg.ID, 3, models.StatusRead, models.StatusUnread)
	require.NoError(t, err)
	assert.False(t, changed, "only the receiver may change status")

	removed, err := repo.DeleteBySender(ctx, msg.ID, 1)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRoleAssignRequiresLiveRole(t *testing.T) {
	database := openTestDB(t)
	repo := NewRoleRepo(database)
	tx := db.NewTransactor(database)
	ctx := context.Background()

	role, err := repo.Create(ctx, "role-"+uuid.NewString(), "")
	require.NoError(t, err)
	require.NoError(t, repo.AssignToAccount(ctx, 55, role.ID))

	accounts, err := repo.AccountsWithRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{55}, accounts)

	removed, err := repo.UnassignFromAccount(ctx, 55, role.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, tx.InTx(ctx, func(ctx context.Context) error {
		live, err := repo.Active().FindByID(ctx, role.ID)
		if err != nil {
			return err
		}
		if err := repo.Archived().Persist(ctx, live.WithArchived(true)); err != nil {
			return err
		}
		return repo.Active().Delete(ctx, role.ID)
	}))

	err = repo.AssignToAccount(ctx, 55, role.ID)
	assert.ErrorIs(t, err, archive.ErrNotFound)

	require.NoError(t, repo.Archived().Delete(ctx, role.ID))
}

func moveToArchive[T archive.Archivable[T]](t *testing.T, tx *db.Transactor, active, archived archive.Store[T], id int) {
	t.Helper()
	require.NoError(t, tx.InTx(context.Background(), func(ctx context.Context) error {
		live, err := active.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := archived.Persist(ctx, live.WithArchived(true)); err != nil {
			return err
		}
		return active.Delete(ctx, id)
	}))
}

func TestRoleRecoverSerialisesWithPermissionPurge(t *testing.T) {
	database := openTestDB(t)
	roles := NewRoleRepo(database)
	perms := NewPermissionRepo(database)
	tx := db.NewTransactor(database)
	ctx := context.Background()

	role, err := roles.Create(ctx, "role-"+uuid.NewString(), "")
	require.NoError(t, err)
	perm, err := perms.Create(ctx, "perm-"+uuid.NewString(), "")
	require.NoError(t, err)
	require.NoError(t, perms.AttachToRole(ctx, role.ID, perm.ID))
	moveToArchive(t, tx, roles.Active(), roles.Archived(), role.ID)
	moveToArchive(t, tx, perms.Active(), perms.Archived(), perm.ID)

	lifecycle := archive.New(archive.Options[models.Permission]{
		Kind:     "permission",
		Active:   perms.Active(),
		Archived: perms.Archived(),
		Tx:       tx,
		Guard: func(ctx context.Context, id int) ([]archive.Reference, error) {
			ids, err := perms.RolesWithPermission(ctx, id)
			refs := make([]archive.Reference, 0, len(ids))
			for _, roleID := range ids {
				refs = append(refs, archive.Reference{Kind: "role", ID: roleID})
			}
			return refs, err
		},
	})

	locked := make(chan struct{})
	proceed := make(chan struct{})
	recovered := make(chan error, 1)
	go func() {
		recovered <- tx.InTx(ctx, func(ctx context.Context) error {
			archivedRole, err := roles.Archived().FindByID(ctx, role.ID)
			if err != nil {
				return err
			}
			if err := roles.LockArchivedPermissions(ctx, role.ID); err != nil {
				return err
			}
			close(locked)
			<-proceed
			if err := roles.Active().Persist(ctx, archivedRole.WithArchived(false)); err != nil {
				return err
			}
			return roles.Archived().Delete(ctx, role.ID)
		})
	}()
	select {
	case <-locked:
	case err := <-recovered:
		t.Fatalf("recovery failed early: %v", err)
	}

	purged := make(chan error, 1)
	go func() { purged <- lifecycle.Purge(ctx, perm.ID) }()
	select {
	case err := <-purged:
		t.Fatalf("purge finished while the recovery held its lock: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(proceed)
	require.NoError(t, <-recovered)
	require.NoError(t, <-purged)

	_, err = perms.Archived().FindByID(ctx, perm.ID)
	require.NoError(t, err, "permission linked to the recovered role must stay archived")
	linked, err := perms.RolesWithPermission(ctx, perm.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{role.ID}, linked)

	_, err = perms.DetachFromRole(ctx, role.ID, perm.ID)
	require.NoError(t, err)
	require.NoError(t, perms.Archived().Delete(ctx, perm.ID))
	require.NoError(t, roles.Active().Delete(ctx, role.ID))
}
