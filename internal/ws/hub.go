package ws

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"notification-service/internal/observability"
)

type entryKey struct {
	receiverID int
	senderID   int
	broadcast  bool
}

// handleKeys is the reverse index of entries one handle owns.
type handleKeys struct {
	mu     sync.Mutex
	handle Handle
	keys   []entryKey
}

// senderBucket holds the subscription handles of one receiver. mu only
// orders inserts against pruning the emptied bucket; lookups skip it.
type senderBucket struct {
	mu      sync.Mutex
	pruned  bool
	senders sync.Map // int -> Handle
}

func (b *senderBucket) empty() bool {
	empty := true
	b.senders.Range(func(any, any) bool {
		empty = false
		return false
	})
	return empty
}

// Hub maps account identities to live connection handles.
//
// Subscription entries form a two-level map receiver -> sender -> handle.
// Broadcast entries map receiver -> handle. Every map is a sync.Map and all
// mutations are per-key check-and-set, so unrelated connects, disconnects and
// lookups never contend on a shared lock.
type Hub struct {
	subscriptions sync.Map // int -> *senderBucket
	broadcasts    sync.Map // int -> Handle
	owned         sync.Map // handle id -> *handleKeys
	conns         sync.Map // handle id -> Handle
	closed        atomic.Bool
	logger        *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger.With("component", "registry")}
}

// RegisterSubscription records h under (receiverID, senderID). An existing
// live handle for the key is kept and false is returned.
func (h *Hub) RegisterSubscription(receiverID, senderID int, handle Handle) bool {
	if h.closed.Load() {
		return false
	}
	var ok bool
	for {
		value, _ := h.subscriptions.LoadOrStore(receiverID, &senderBucket{})
		bucket := value.(*senderBucket)
		bucket.mu.Lock()
		if bucket.pruned {
			bucket.mu.Unlock()
			continue
		}
		ok = insert(&bucket.senders, senderID, handle)
		bucket.mu.Unlock()
		break
	}
	if ok {
		h.track(handle, entryKey{receiverID: receiverID, senderID: senderID})
		observability.IncRegistryEvent("subscription", "register")
	}
	return ok
}

// RegisterBroadcast records h under receiverID with first-writer-wins
// semantics.
func (h *Hub) RegisterBroadcast(receiverID int, handle Handle) bool {
	if h.closed.Load() {
		return false
	}
	ok := insert(&h.broadcasts, receiverID, handle)
	if ok {
		h.track(handle, entryKey{receiverID: receiverID, broadcast: true})
		observability.IncRegistryEvent("broadcast", "register")
	}
	return ok
}

// LookupSubscription returns the live handle for (receiverID, senderID).
func (h *Hub) LookupSubscription(receiverID, senderID int) (Handle, bool) {
	value, ok := h.subscriptions.Load(receiverID)
	if !ok {
		return nil, false
	}
	return lookup(&value.(*senderBucket).senders, senderID)
}

// LookupBroadcast returns the live broadcast handle of receiverID.
func (h *Hub) LookupBroadcast(receiverID int) (Handle, bool) {
	return lookup(&h.broadcasts, receiverID)
}

// BroadcastReceivers snapshots the ids with a live broadcast handle.
func (h *Hub) BroadcastReceivers() []int {
	ids := make([]int, 0)
	h.broadcasts.Range(func(key, value any) bool {
		if !value.(Handle).Closed() {
			ids = append(ids, key.(int))
		}
		return true
	})
	sort.Ints(ids)
	return ids
}

// Unregister removes every entry that points at handle. Entries re-bound to a
// different handle are left alone and repeated calls are no-ops.
func (h *Hub) Unregister(handle Handle) {
	if handle == nil {
		return
	}
	h.conns.CompareAndDelete(handle.ID(), handle)
	value, ok := h.owned.LoadAndDelete(handle.ID())
	if !ok {
		return
	}
	owned := value.(*handleKeys)
	owned.mu.Lock()
	keys := owned.keys
	owned.keys = nil
	owned.mu.Unlock()

	for _, key := range keys {
		if key.broadcast {
			if h.broadcasts.CompareAndDelete(key.receiverID, handle) {
				observability.IncRegistryEvent("broadcast", "unregister")
			}
			continue
		}
		value, ok := h.subscriptions.Load(key.receiverID)
		if !ok {
			continue
		}
		bucket := value.(*senderBucket)
		if bucket.senders.CompareAndDelete(key.senderID, handle) {
			observability.IncRegistryEvent("subscription", "unregister")
		}
		h.prune(key.receiverID, bucket)
	}
	h.logger.Debug("handle unregistered", "conn_id", handle.ID(), "entries", len(keys))
}

// Attach records a live connection so Close can reach it before it binds any
// channel. It returns false once the hub is closed.
func (h *Hub) Attach(handle Handle) bool {
	if h.closed.Load() {
		return false
	}
	h.conns.Store(handle.ID(), handle)
	if h.closed.Load() {
		h.conns.CompareAndDelete(handle.ID(), handle)
		return false
	}
	return true
}

// Close rejects further registrations and closes every attached or
// registered handle. Handles close their sockets; the read loops then
// unregister them.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	closed := 0
	closeHandle := func(handle Handle) {
		if closer, ok := handle.(io.Closer); ok && !handle.Closed() {
			if err := closer.Close(); err != nil {
				h.logger.Debug("close handle", "conn_id", handle.ID(), "error", err)
			}
			closed++
		}
	}
	h.conns.Range(func(_, value any) bool {
		closeHandle(value.(Handle))
		return true
	})
	h.owned.Range(func(_, value any) bool {
		owned := value.(*handleKeys)
		owned.mu.Lock()
		handle := owned.handle
		owned.mu.Unlock()
		if handle != nil {
			closeHandle(handle)
		}
		return true
	})
	h.logger.Info("registry closed", "handles", closed)
}

// Len reports how many receivers currently have a subscription bucket and
// how many have a broadcast entry.
func (h *Hub) Len() (subscriptions, broadcasts int) {
	h.subscriptions.Range(func(any, any) bool {
		subscriptions++
		return true
	})
	h.broadcasts.Range(func(any, any) bool {
		broadcasts++
		return true
	})
	return subscriptions, broadcasts
}

// prune drops the bucket of receiverID once its last sender is gone.
func (h *Hub) prune(receiverID int, bucket *senderBucket) {
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	if bucket.pruned || !bucket.empty() {
		return
	}
	bucket.pruned = true
	h.subscriptions.CompareAndDelete(receiverID, bucket)
}

func (h *Hub) track(handle Handle, key entryKey) {
	value, _ := h.owned.LoadOrStore(handle.ID(), &handleKeys{handle: handle})
	owned := value.(*handleKeys)
	owned.mu.Lock()
	owned.keys = append(owned.keys, key)
	owned.mu.Unlock()
	// A handle closed while registering would otherwise leave a stale entry.
	if handle.Closed() {
		h.Unregister(handle)
	}
}

func insert(m *sync.Map, key int, handle Handle) bool {
	for {
		existing, loaded := m.LoadOrStore(key, handle)
		if !loaded {
			return true
		}
		current := existing.(Handle)
		if current == handle {
			return false
		}
		if !current.Closed() {
			return false
		}
		if m.CompareAndSwap(key, existing, handle) {
			return true
		}
	}
}

func lookup(m *sync.Map, key int) (Handle, bool) {
	value, ok := m.Load(key)
	if !ok {
		return nil, false
	}
	handle := value.(Handle)
	if handle.Closed() {
		m.CompareAndDelete(key, value)
		return nil, false
	}
	return handle, true
}
