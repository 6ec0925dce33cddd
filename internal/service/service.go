// Package service holds the forwarders, the read-state tracker and the
// archive lifecycles for every archivable entity kind.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"notification-service/internal/archive"
	"notification-service/internal/models"
	"notification-service/internal/observability"
	"notification-service/internal/ws"
)

// ErrInvalidInput marks requests rejected before touching storage.
var ErrInvalidInput = errors.New("invalid input")

var tracer = otel.Tracer("notification-service/service")

// Presence is the read side of the connection registry.
type Presence interface {
	LookupSubscription(receiverID, senderID int) (ws.Handle, bool)
	LookupBroadcast(receiverID int) (ws.Handle, bool)
	BroadcastReceivers() []int
}

// LifecycleDeps carries the collaborators shared by every archive lifecycle.
type LifecycleDeps struct {
	Scheduler archive.Scheduler
	Locker    archive.Locker
	Tx        archive.TxRunner
	Retention time.Duration
	Logger    *slog.Logger
}

func newLifecycle[T archive.Archivable[T]](deps LifecycleDeps, kind string, active, archived archive.Store[T], guard archive.Guard, extra ...func(*archive.Options[T])) *archive.Lifecycle[T] {
	opts := archive.Options[T]{
		Kind:      kind,
		Active:    active,
		Archived:  archived,
		Guard:     guard,
		Retention: deps.Retention,
		Scheduler: deps.Scheduler,
		Locker:    deps.Locker,
		Tx:        deps.Tx,
		Logger:    deps.Logger,
		Observe:   observability.ObserveArchiveTransition,
	}
	for _, apply := range extra {
		apply(&opts)
	}
	return archive.New(opts)
}

// push writes event to handle when one was found. Failures are treated as
// the receiver being offline.
func push(logger *slog.Logger, kind string, handle ws.Handle, online bool, event models.PushEvent) string {
	if !online {
		observability.IncPush(kind, observability.PushOffline)
		return observability.PushOffline
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("encode push event", "error", err)
		observability.IncPush(kind, observability.PushFailed)
		return observability.PushFailed
	}
	if err := handle.Push(payload); err != nil {
		logger.Debug("push failed, receiver treated as offline", "conn_id", handle.ID(), "error", err)
		observability.IncPush(kind, observability.PushFailed)
		return observability.PushFailed
	}
	observability.IncPush(kind, observability.PushDelivered)
	return observability.PushDelivered
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
