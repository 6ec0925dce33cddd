// Package archive implements the Active -> Archived -> {Recovered, Deleted}
// lifecycle shared by messages, roles and permissions.
//
// An entity moves from its active store into a separate archived store and a
// deferred deletion is scheduled. When the job fires, the reference guard is
// evaluated again against current state before the archived row is removed.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notification-service/internal/models"
)

// Archivable is implemented by entities that carry an archived flag.
type Archivable[T any] interface {
	WithArchived(archived bool) T
}

// Store is the persistence capability a lifecycle needs per entity kind.
type Store[T any] interface {
	Persist(ctx context.Context, entity T) error
	FindByID(ctx context.Context, id int) (T, error)
	Delete(ctx context.Context, id int) error
	FindAllPage(ctx context.Context, page models.Page) ([]T, error)
}

// Purger is implemented by archived stores that must drop dependent rows
// together with the entity on final deletion.
type Purger interface {
	Purge(ctx context.Context, id int) error
}

// Guard lists the live entities that still reference id.
type Guard func(ctx context.Context, id int) ([]Reference, error)

// Scheduler runs deferred jobs at least once after their due time.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, id int, runAt time.Time) error
	Cancel(ctx context.Context, kind string, id int) error
	Handle(kind string, fn func(ctx context.Context, id int) error)
}

// Locker provides mutual exclusion scoped to a single key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// TxRunner executes fn inside one database transaction carried by ctx.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options configures a Lifecycle.
type Options[T Archivable[T]] struct {
	Kind      string
	Active    Store[T]
	Archived  Store[T]
	Guard     Guard
	Retention time.Duration
	Scheduler Scheduler
	Locker    Locker
	Tx        TxRunner
	Logger    *slog.Logger
	// BeforeRecover runs inside the recover transaction before the entity
	// is moved back. It locks rows whose deletion the recovered entity
	// would otherwise race with.
	BeforeRecover func(ctx context.Context, id int) error
	// Observe is notified after every completed transition.
	Observe func(kind, transition string)
	Now     func() time.Time
}

// Lifecycle performs guarded archive, recover and deferred deletion for one
// entity kind.
type Lifecycle[T Archivable[T]] struct {
	opts Options[T]
}

// New builds a Lifecycle and registers its deferred deletion handler with the
// scheduler.
func New[T Archivable[T]](opts Options[T]) *Lifecycle[T] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observe == nil {
		opts.Observe = func(string, string) {}
	}
	opts.Logger = opts.Logger.With("component", "archive", "kind", opts.Kind)
	l := &Lifecycle[T]{opts: opts}
	if opts.Scheduler != nil {
		opts.Scheduler.Handle(l.jobKind(), l.Purge)
	}
	return l
}

// Kind returns the entity kind this lifecycle manages.
func (l *Lifecycle[T]) Kind() string { return l.opts.Kind }

func (l *Lifecycle[T]) jobKind() string { return "purge." + l.opts.Kind }

// Archive moves the entity into the archived store and schedules its
// deletion. It fails with a ConflictError while the entity is referenced.
func (l *Lifecycle[T]) Archive(ctx context.Context, id int) (T, error) {
	var archived T
	release, err := l.lock(ctx, id)
	if err != nil {
		return archived, err
	}
	defer release()

	err = l.inTx(ctx, func(ctx context.Context) error {
		entity, err := l.opts.Active.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := l.check(ctx, id); err != nil {
			return err
		}
		archived = entity.WithArchived(true)
		if err := l.opts.Archived.Persist(ctx, archived); err != nil {
			return fmt.Errorf("persist archived %s: %w", l.opts.Kind, err)
		}
		if err := l.opts.Active.Delete(ctx, id); err != nil {
			return fmt.Errorf("remove active %s: %w", l.opts.Kind, err)
		}
		if l.opts.Scheduler != nil {
			runAt := l.opts.Now().Add(l.opts.Retention)
			if err := l.opts.Scheduler.Schedule(ctx, l.jobKind(), id, runAt); err != nil {
				return fmt.Errorf("schedule deletion: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	l.opts.Logger.Info("entity archived", "id", id, "retention", l.opts.Retention)
	l.opts.Observe(l.opts.Kind, "archive")
	return archived, nil
}

// Recover moves the entity back into the active store and cancels the
// pending deletion.
func (l *Lifecycle[T]) Recover(ctx context.Context, id int) (T, error) {
	var recovered T
	release, err := l.lock(ctx, id)
	if err != nil {
		return recovered, err
	}
	defer release()

	err = l.inTx(ctx, func(ctx context.Context) error {
		entity, err := l.opts.Archived.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if l.opts.BeforeRecover != nil {
			if err := l.opts.BeforeRecover(ctx, id); err != nil {
				return err
			}
		}
		recovered = entity.WithArchived(false)
		if err := l.opts.Active.Persist(ctx, recovered); err != nil {
			return fmt.Errorf("persist active %s: %w", l.opts.Kind, err)
		}
		return l.opts.Archived.Delete(ctx, id)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	if l.opts.Scheduler != nil {
		if err := l.opts.Scheduler.Cancel(ctx, l.jobKind(), id); err != nil {
			// A stale job finds no archived row and does nothing.
			l.opts.Logger.Warn("cancel deletion failed", "id", id, "error", err)
		}
	}
	l.opts.Logger.Info("entity recovered", "id", id)
	l.opts.Observe(l.opts.Kind, "recover")
	return recovered, nil
}

// Purge is the deferred deletion job. The archived row is locked, the guard
// is evaluated against current state and the row is removed in one
// transaction; a still-referenced entity is left archived and no retry is
// scheduled.
func (l *Lifecycle[T]) Purge(ctx context.Context, id int) error {
	release, err := l.lock(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	err = l.inTx(ctx, func(ctx context.Context) error {
		if _, err := l.opts.Archived.FindByID(ctx, id); err != nil {
			return err
		}
		if err := l.check(ctx, id); err != nil {
			return err
		}
		if err := l.remove(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete archived %s: %w", l.opts.Kind, err)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		l.opts.Logger.Debug("deletion skipped, entity no longer archived", "id", id)
		return nil
	}
	if conflict, ok := IsConflict(err); ok {
		l.opts.Logger.Info("deletion skipped, entity still referenced", "id", id, "references", len(conflict.References))
		l.opts.Observe(l.opts.Kind, "purge_skipped")
		return nil
	}
	if err != nil {
		return err
	}
	l.opts.Logger.Info("archived entity deleted", "id", id)
	l.opts.Observe(l.opts.Kind, "purge")
	return nil
}

// Update applies fn to the active entity while holding its lock.
func (l *Lifecycle[T]) Update(ctx context.Context, id int, fn func(T) (T, error)) (T, error) {
	var zero T
	release, err := l.lock(ctx, id)
	if err != nil {
		return zero, err
	}
	defer release()

	entity, err := l.opts.Active.FindByID(ctx, id)
	if err != nil {
		return zero, err
	}
	updated, err := fn(entity)
	if err != nil {
		return zero, err
	}
	if err := l.opts.Active.Persist(ctx, updated); err != nil {
		return zero, fmt.Errorf("persist %s: %w", l.opts.Kind, err)
	}
	return updated, nil
}

// Find resolves id in the active store first and then in the archived store.
func (l *Lifecycle[T]) Find(ctx context.Context, id int) (T, error) {
	entity, err := l.opts.Active.FindByID(ctx, id)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return entity, err
	}
	return l.opts.Archived.FindByID(ctx, id)
}

// ListArchived pages through the archived store.
func (l *Lifecycle[T]) ListArchived(ctx context.Context, page models.Page) ([]T, error) {
	return l.opts.Archived.FindAllPage(ctx, page.Normalize())
}

func (l *Lifecycle[T]) remove(ctx context.Context, id int) error {
	if purger, ok := l.opts.Archived.(Purger); ok {
		return purger.Purge(ctx, id)
	}
	return l.opts.Archived.Delete(ctx, id)
}

func (l *Lifecycle[T]) check(ctx context.Context, id int) error {
	if l.opts.Guard == nil {
		return nil
	}
	refs, err := l.opts.Guard(ctx, id)
	if err != nil {
		return fmt.Errorf("reference check: %w", err)
	}
	if len(refs) > 0 {
		return &ConflictError{Kind: l.opts.Kind, ID: id, References: refs}
	}
	return nil
}

func (l *Lifecycle[T]) lock(ctx context.Context, id int) (func(), error) {
	if l.opts.Locker == nil {
		return func() {}, nil
	}
	release, err := l.opts.Locker.Acquire(ctx, fmt.Sprintf("%s:%d", l.opts.Kind, id))
	if err != nil {
		l.opts.Logger.Warn("entity lock unavailable", "id", id, "error", err)
		return nil, err
	}
	return release, nil
}

func (l *Lifecycle[T]) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.opts.Tx == nil {
		return fn(ctx)
	}
	return l.opts.Tx.InTx(ctx, fn)
}
