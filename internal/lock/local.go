package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// localSlot is the semaphore of one key. refs counts the holder and waiters;
// the slot is dropped when it reaches zero.
type localSlot struct {
	ch   chan struct{}
	refs int
}

// Local serializes holders of the same key within this process only. It is
// the degraded mode used when no Redis is configured.
type Local struct {
	wait  time.Duration
	mu    sync.Mutex
	slots map[string]*localSlot
}

// NewLocal creates a Local locker that waits at most wait for a key.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Local{wait: wait, slots: make(map[string]*localSlot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	slot := l.join(key)

	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(key, slot)
		return nil, fmt.Errorf("%w: %s", ErrLockUnavailable, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.leave(key, slot)
		})
	}, nil
}

func (l *Local) join(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *Local) leave(key string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
