package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"notification-service/internal/archive"
	"notification-service/internal/archive/archivetest"
	"notification-service/internal/models"
	"notification-service/internal/repositories"
	"notification-service/internal/ws"
)

type fakeHandle struct {
	id     string
	fail   bool
	closed atomic.Bool
	mu     sync.Mutex
	pushed [][]byte
}

func (f *fakeHandle) ID() string   { return f.id }
func (f *fakeHandle) Closed() bool { return f.closed.Load() }

func (f *fakeHandle) Push(payload []byte) error {
	if f.fail {
		return ws.ErrBufferFull
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, payload)
	return nil
}

func (f *fakeHandle) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

type fakeSubscriptionRepo struct {
	mu       sync.Mutex
	nextID   int
	active   *archivetest.Store[models.SubscriptionMessage]
	archived *archivetest.Store[models.SubscriptionMessage]
}

var _ repositories.SubscriptionRepository = (*fakeSubscriptionRepo)(nil)

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	idOf := func(m models.SubscriptionMessage) int { return m.ID }
	return &fakeSubscriptionRepo{
		active:   archivetest.NewStore(idOf),
		archived: archivetest.NewStore(idOf),
	}
}

func (r *fakeSubscriptionRepo) Active() archive.Store[models.SubscriptionMessage]   { return r.active }
func (r *fakeSubscriptionRepo) Archived() archive.Store[models.SubscriptionMessage] { return r.archived }

func (r *fakeSubscriptionRepo) Create(ctx context.Context, senderID, receiverID int, text string) (models.SubscriptionMessage, error) {
	r.mu.Lock()
	r.nextID++
	msg := models.SubscriptionMessage{ID: r.nextID, SenderID: senderID, ReceiverID: receiverID, Message: text, Status: models.StatusUnread}
	r.mu.Unlock()
	return msg, r.active.Persist(ctx, msg)
}

func (r *fakeSubscriptionRepo) FindForAccount(ctx context.Context, id, accountID int) (models.SubscriptionMessage, error) {
	for _, store := range []*archivetest.Store[models.SubscriptionMessage]{r.active, r.archived} {
		msg, err := store.FindByID(ctx, id)
		if err == nil && (msg.SenderID == accountID || msg.ReceiverID == accountID) {
			return msg, nil
		}
	}
	return models.SubscriptionMessage{}, repositories.ErrMessageNotFound
}

func (r *fakeSubscriptionRepo) UpdateStatus(ctx context.Context, id, receiverID int, from, to models.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, err := r.active.FindByID(ctx, id)
	if err != nil || msg.ReceiverID != receiverID || msg.Status != from {
		return false, nil
	}
	msg.Status = to
	return true, r.active.Persist(ctx, msg)
}

func (r *fakeSubscriptionRepo) DeleteBySender(ctx context.Context, id, senderID int) (bool, error) {
	removed := false
	for _, store := range []*archivetest.Store[models.SubscriptionMessage]{r.active, r.archived} {
		if msg, err := store.FindByID(ctx, id); err == nil && msg.SenderID == senderID {
			removed = store.Delete(ctx, id) == nil || removed
		}
	}
	return removed, nil
}

func (r *fakeSubscriptionRepo) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	return r.list(ctx, filter, page, func(m models.SubscriptionMessage) bool { return m.ReceiverID == receiverID })
}

func (r *fakeSubscriptionRepo) FindSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	return r.list(ctx, filter, page, func(m models.SubscriptionMessage) bool { return m.SenderID == senderID })
}

func (r *fakeSubscriptionRepo) list(ctx context.Context, filter models.MessageFilter, page models.Page, keep func(models.SubscriptionMessage) bool) ([]models.SubscriptionMessage, error) {
	store := r.active
	if filter.Archived {
		store = r.archived
	}
	all, err := store.FindAllPage(ctx, models.Page{Limit: models.MaxPageLimit})
	if err != nil {
		return nil, err
	}
	out := make([]models.SubscriptionMessage, 0)
	for _, m := range all {
		if keep(m) && (filter.Status == "" || m.Status == filter.Status) {
			out = append(out, m)
		}
	}
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

type fakeBroadcastRepo struct {
	mu       sync.Mutex
	nextID   int
	active   *archivetest.Store[models.BroadcastMessage]
	archived *archivetest.Store[models.BroadcastMessage]
	receipts map[int]map[int]models.MessageStatus
}

var _ repositories.BroadcastRepository = (*fakeBroadcastRepo)(nil)

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	idOf := func(m models.BroadcastMessage) int { return m.ID }
	return &fakeBroadcastRepo{
		active:   archivetest.NewStore(idOf),
		archived: archivetest.NewStore(idOf),
		receipts: make(map[int]map[int]models.MessageStatus),
	}
}

func (r *fakeBroadcastRepo) Active() archive.Store[models.BroadcastMessage]   { return r.active }
func (r *fakeBroadcastRepo) Archived() archive.Store[models.BroadcastMessage] { return r.archived }

func (r *fakeBroadcastRepo) Create(ctx context.Context, senderID int, text string, receiverIDs []int) (models.BroadcastMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg := models.BroadcastMessage{ID: r.nextID, SenderID: senderID, Message: text, Status: models.StatusUnread, CountUnread: len(receiverIDs), ReceiverIDs: receiverIDs}
	rows := make(map[int]models.MessageStatus, len(receiverIDs))
	for _, id := range receiverIDs {
		rows[id] = models.StatusUnread
	}
	r.receipts[msg.ID] = rows
	return msg, r.active.Persist(ctx, msg)
}

// SetReceiptStatus holds the repo mutex the way the SQL version holds the
// parent row lock.
func (r *fakeBroadcastRepo) SetReceiptStatus(ctx context.Context, messageID, receiverID int, to models.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, err := r.active.FindByID(ctx, messageID)
	if err != nil {
		return false, repositories.ErrMessageNotFound
	}
	current, ok := r.receipts[messageID][receiverID]
	if !ok || current == to {
		return false, nil
	}
	r.receipts[messageID][receiverID] = to

	msg.CountUnread, msg.CountRead = 0, 0
	for _, status := range r.receipts[messageID] {
		if status == models.StatusRead {
			msg.CountRead++
		} else {
			msg.CountUnread++
		}
	}
	msg.Status = models.StatusUnread
	if msg.CountUnread == 0 {
		msg.Status = models.StatusRead
	}
	return true, r.active.Persist(ctx, msg)
}

func (r *fakeBroadcastRepo) FindByIDAndSender(ctx context.Context, id, senderID int) (models.BroadcastMessage, error) {
	for _, store := range []*archivetest.Store[models.BroadcastMessage]{r.active, r.archived} {
		if msg, err := store.FindByID(ctx, id); err == nil && msg.SenderID == senderID {
			return msg, nil
		}
	}
	return models.BroadcastMessage{}, repositories.ErrMessageNotFound
}

func (r *fakeBroadcastRepo) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.ReceivedBroadcast, error) {
	all, _ := r.active.FindAllPage(ctx, models.Page{Limit: models.MaxPageLimit})
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ReceivedBroadcast, 0)
	for _, msg := range all {
		status, ok := r.receipts[msg.ID][receiverID]
		if !ok || (filter.Status != "" && status != filter.Status) {
			continue
		}
		out = append(out, models.ReceivedBroadcast{ID: msg.ID, SenderID: msg.SenderID, Message: msg.Message, ReceiptStatus: status})
	}
	return out, nil
}

func (r *fakeBroadcastRepo) FindAllSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.BroadcastMessage, error) {
	store := r.active
	if filter.Archived {
		store = r.archived
	}
	all, _ := store.FindAllPage(ctx, models.Page{Limit: models.MaxPageLimit})
	out := make([]models.BroadcastMessage, 0)
	for _, msg := range all {
		if msg.SenderID == senderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *fakeBroadcastRepo) Receipts(ctx context.Context, messageID int) ([]models.BroadcastReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.BroadcastReceipt, 0)
	for receiverID, status := range r.receipts[messageID] {
		out = append(out, models.BroadcastReceipt{MessageID: messageID, ReceiverID: receiverID, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiverID < out[j].ReceiverID })
	return out, nil
}

func (r *fakeBroadcastRepo) DeleteBySender(ctx context.Context, id, senderID int) (bool, error) {
	removed := false
	for _, store := range []*archivetest.Store[models.BroadcastMessage]{r.active, r.archived} {
		if msg, err := store.FindByID(ctx, id); err == nil && msg.SenderID == senderID {
			removed = store.Delete(ctx, id) == nil || removed
		}
	}
	if removed {
		r.mu.Lock()
		delete(r.receipts, id)
		r.mu.Unlock()
	}
	return removed, nil
}

type fakeRoleRepo struct {
	mu          sync.Mutex
	nextID      int
	active      *archivetest.Store[models.Role]
	archived    *archivetest.Store[models.Role]
	assignments map[int]map[int]struct{} // role -> accounts
	pinned      []int
}

var _ repositories.RoleRepository = (*fakeRoleRepo)(nil)

func newFakeRoleRepo() *fakeRoleRepo {
	idOf := func(r models.Role) int { return r.ID }
	return &fakeRoleRepo{
		active:      archivetest.NewStore(idOf),
		archived:    archivetest.NewStore(idOf),
		assignments: make(map[int]map[int]struct{}),
	}
}

func (r *fakeRoleRepo) Active() archive.Store[models.Role]   { return r.active }
func (r *fakeRoleRepo) Archived() archive.Store[models.Role] { return r.archived }

func (r *fakeRoleRepo) Create(ctx context.Context, name, description string) (models.Role, error) {
	r.mu.Lock()
	r.nextID++
	role := models.Role{ID: r.nextID, Name: name, Description: description}
	r.mu.Unlock()
	return role, r.active.Persist(ctx, role)
}

func (r *fakeRoleRepo) AssignToAccount(ctx context.Context, accountID, roleID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active.Has(roleID) {
		return repositories.ErrRoleNotFound
	}
	if r.assignments[roleID] == nil {
		r.assignments[roleID] = make(map[int]struct{})
	}
	r.assignments[roleID][accountID] = struct{}{}
	return nil
}

func (r *fakeRoleRepo) UnassignFromAccount(ctx context.Context, accountID, roleID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.assignments[roleID][accountID]
	delete(r.assignments[roleID], accountID)
	return ok, nil
}

func (r *fakeRoleRepo) AccountsWithRole(ctx context.Context, roleID int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0)
	for accountID := range r.assignments[roleID] {
		out = append(out, accountID)
	}
	sort.Ints(out)
	return out, nil
}

func (r *fakeRoleRepo) LockArchivedPermissions(ctx context.Context, roleID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = append(r.pinned, roleID)
	return nil
}

func (r *fakeRoleRepo) RolesForAccount(ctx context.Context, accountID int) ([]models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Role, 0)
	for roleID, accounts := range r.assignments {
		if _, ok := accounts[accountID]; ok {
			if role, err := r.active.FindByID(ctx, roleID); err == nil {
				out = append(out, role)
			}
		}
	}
	return out, nil
}

type fakePermissionRepo struct {
	mu       sync.Mutex
	nextID   int
	roles    *fakeRoleRepo
	active   *archivetest.Store[models.Permission]
	archived *archivetest.Store[models.Permission]
	attached map[int]map[int]struct{} // permission -> roles
}

var _ repositories.PermissionRepository = (*fakePermissionRepo)(nil)

func newFakePermissionRepo(roles *fakeRoleRepo) *fakePermissionRepo {
	idOf := func(p models.Permission) int { return p.ID }
	return &fakePermissionRepo{
		roles:    roles,
		active:   archivetest.NewStore(idOf),
		archived: archivetest.NewStore(idOf),
		attached: make(map[int]map[int]struct{}),
	}
}

func (r *fakePermissionRepo) Active() archive.Store[models.Permission]   { return r.active }
func (r *fakePermissionRepo) Archived() archive.Store[models.Permission] { return r.archived }

func (r *fakePermissionRepo) Create(ctx context.Context, name, description string) (models.Permission, error) {
	r.mu.Lock()
	r.nextID++
	p := models.Permission{ID: r.nextID, Name: name, Description: description}
	r.mu.Unlock()
	return p, r.active.Persist(ctx, p)
}

func (r *fakePermissionRepo) AttachToRole(ctx context.Context, roleID, permissionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.roles.active.Has(roleID) {
		return repositories.ErrRoleNotFound
	}
	if !r.active.Has(permissionID) {
		return repositories.ErrPermissionNotFound
	}
	if r.attached[permissionID] == nil {
		r.attached[permissionID] = make(map[int]struct{})
	}
	r.attached[permissionID][roleID] = struct{}{}
	return nil
}

func (r *fakePermissionRepo) DetachFromRole(ctx context.Context, roleID, permissionID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.attached[permissionID][roleID]
	delete(r.attached[permissionID], roleID)
	return ok, nil
}

func (r *fakePermissionRepo) RolesWithPermission(ctx context.Context, permissionID int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0)
	for roleID := range r.attached[permissionID] {
		if r.roles.active.Has(roleID) {
			out = append(out, roleID)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (r *fakePermissionRepo) PermissionsForRole(ctx context.Context, roleID int) ([]models.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Permission, 0)
	for permissionID, roles := range r.attached {
		if _, ok := roles[roleID]; ok {
			if p, err := r.active.FindByID(ctx, permissionID); err == nil {
				out = append(out, p)
			}
		}
	}
	return out, nil
}
