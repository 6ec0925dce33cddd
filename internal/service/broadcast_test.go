package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-service/internal/lock"
	"notification-service/internal/models"
	"notification-service/internal/scheduler"
	"notification-service/internal/ws"
)

func newBroadcastFixture() (*BroadcastService, *fakeBroadcastRepo, *ws.Hub, *scheduler.Memory) {
	repo := newFakeBroadcastRepo()
	hub := ws.NewHub(nil)
	sched := scheduler.NewMemory(time.Second, nil)
	svc := NewBroadcastService(repo, hub, LifecycleDeps{
		Scheduler: sched,
		Locker:    lock.NewLocal(time.Second),
		Retention: time.Hour,
	})
	return svc, repo, hub, sched
}

func TestBroadcastOnlineAndOfflineReceivers(t *testing.T) {
	svc, repo, hub, _ := newBroadcastFixture()
	ctx := context.Background()
	handleB := &fakeHandle{id: "b"}
	require.True(t, hub.RegisterBroadcast(accountB, handleB))

	msg, err := svc.Forward(ctx, accountA, []int{accountB, accountC}, "news")
	require.NoError(t, err)
	require.Equal(t, 1, handleB.count())
	assert.NotContains(t, string(handleB.pushed[0]), "receiver_ids")

	receipts, err := repo.Receipts(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.BroadcastReceipt{
		{MessageID: msg.ID, ReceiverID: accountB, Status: models.StatusUnread},
		{MessageID: msg.ID, ReceiverID: accountC, Status: models.StatusUnread},
	}, receipts)

	changed, err := svc.MarkRead(ctx, msg.ID, accountB)
	require.NoError(t, err)
	assert.True(t, changed)
	detail, err := svc.Get(ctx, msg.ID, accountA)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.CountUnread)
	assert.Equal(t, 1, detail.CountRead)
	assert.Equal(t, models.StatusUnread, detail.Status)

	received, err := svc.FindReceived(ctx, accountC, models.MessageFilter{}, models.Page{})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, models.StatusUnread, received[0].ReceiptStatus)

	_, err = svc.MarkRead(ctx, msg.ID, accountC)
	require.NoError(t, err)
	detail, err = svc.Get(ctx, msg.ID, accountA)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.CountUnread)
	assert.Equal(t, 2, detail.CountRead)
	assert.Equal(t, models.StatusRead, detail.Status)

	_, err = svc.MarkUnread(ctx, msg.ID, accountC)
	require.NoError(t, err)
	detail, _ = svc.Get(ctx, msg.ID, accountA)
	assert.Equal(t, models.StatusUnread, detail.Status)
	assert.Equal(t, 1, detail.CountUnread)
}

func TestBroadcastFindReceivedRejectsArchivedFilter(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()
	ctx := context.Background()
	_, err := svc.Forward(ctx, accountA, []int{accountB}, "news")
	require.NoError(t, err)

	_, err = svc.FindReceived(ctx, accountB, models.MessageFilter{Archived: true}, models.Page{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	received, err := svc.FindReceived(ctx, accountB, models.MessageFilter{}, models.Page{})
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestBroadcastDefaultsToOnlineSnapshot(t *testing.T) {
	svc, repo, hub, _ := newBroadcastFixture()
	ctx := context.Background()
	handleB := &fakeHandle{id: "b"}
	require.True(t, hub.RegisterBroadcast(accountB, handleB))

	msg, err := svc.Forward(ctx, accountA, nil, "everyone")
	require.NoError(t, err)
	assert.Equal(t, []int{accountB}, msg.ReceiverIDs)

	// A later connect does not receive the earlier broadcast.
	handleC := &fakeHandle{id: "c"}
	require.True(t, hub.RegisterBroadcast(accountC, handleC))
	assert.Equal(t, 0, handleC.count())

	receipts, err := repo.Receipts(ctx, msg.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestBroadcastDeduplicatesAndValidatesReceivers(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()
	msg, err := svc.Forward(context.Background(), accountA, []int{accountB, accountB, accountC}, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, msg.CountUnread)

	_, err = svc.Forward(context.Background(), accountA, []int{-1}, "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBroadcastConcurrentMarkReadKeepsAggregate(t *testing.T) {
	svc, repo, _, _ := newBroadcastFixture()
	ctx := context.Background()

	receivers := make([]int, 50)
	for i := range receivers {
		receivers[i] = 100 + i
	}
	msg, err := svc.Forward(ctx, accountA, receivers, "fan-out")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var violations []string
	for _, receiverID := range receivers {
		wg.Add(1)
		go func(receiverID int) {
			defer wg.Done()
			_, err := svc.MarkRead(ctx, msg.ID, receiverID)
			assert.NoError(t, err)
			current, err := repo.active.FindByID(ctx, msg.ID)
			assert.NoError(t, err)
			if current.CountUnread+current.CountRead != len(receivers) {
				mu.Lock()
				violations = append(violations, fmt.Sprintf("%d+%d", current.CountUnread, current.CountRead))
				mu.Unlock()
			}
		}(receiverID)
	}
	wg.Wait()

	assert.Empty(t, violations)
	final, err := repo.active.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, final.CountUnread)
	assert.Equal(t, len(receivers), final.CountRead)
	assert.Equal(t, models.StatusRead, final.Status)
}

func TestBroadcastMarkReadMissingIsNoop(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()
	ctx := context.Background()

	changed, err := svc.MarkRead(ctx, 404, accountB)
	require.NoError(t, err)
	assert.False(t, changed)

	msg, err := svc.Forward(ctx, accountA, []int{accountB}, "x")
	require.NoError(t, err)
	changed, err = svc.MarkRead(ctx, msg.ID, accountC)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestBroadcastArchiveDeleteAndOwnership(t *testing.T) {
	svc, repo, _, sched := newBroadcastFixture()
	ctx := context.Background()
	msg, err := svc.Forward(ctx, accountA, []int{accountB}, "x")
	require.NoError(t, err)

	_, err = svc.Get(ctx, msg.ID, accountB)
	assert.Error(t, err)

	_, err = svc.Archive(ctx, msg.ID, accountA)
	require.NoError(t, err)
	assert.True(t, sched.Pending("purge.broadcast_message", msg.ID))

	sent, err := svc.FindAllSent(ctx, accountA, models.MessageFilter{Archived: true}, models.Page{})
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	removed, err := svc.Delete(ctx, msg.ID, accountA)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, repo.archived.Has(msg.ID))

	// The pending deletion finds nothing left to remove.
	sched.RunDue(ctx, time.Now().Add(2*time.Hour))
	assert.False(t, sched.Pending("purge.broadcast_message", msg.ID))
}
