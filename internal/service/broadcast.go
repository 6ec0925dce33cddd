package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"notification-service/internal/archive"
	"notification-service/internal/models"
	"notification-service/internal/observability"
	"notification-service/internal/repositories"
)

// BroadcastDetail is a sent broadcast together with its receipts.
type BroadcastDetail struct {
	models.BroadcastMessage
	Receipts []models.BroadcastReceipt `json:"receipts"`
}

// BroadcastService fans messages out to many receivers and keeps the
// per-receiver read state.
type BroadcastService struct {
	repo      repositories.BroadcastRepository
	presence  Presence
	lifecycle *archive.Lifecycle[models.BroadcastMessage]
	logger    *slog.Logger
}

func NewBroadcastService(repo repositories.BroadcastRepository, presence Presence, deps LifecycleDeps) *BroadcastService {
	deps.Logger = loggerOrDefault(deps.Logger)
	return &BroadcastService{
		repo:      repo,
		presence:  presence,
		lifecycle: newLifecycle(deps, "broadcast_message", repo.Active(), repo.Archived(), nil),
		logger:    deps.Logger.With("component", "broadcast"),
	}
}

// Forward persists a broadcast with one UNREAD receipt per receiver and
// pushes it to every receiver online right now. A nil receiverIDs targets the
// accounts holding a broadcast channel at this instant; accounts that connect
// later are not included.
func (s *BroadcastService) Forward(ctx context.Context, senderID int, receiverIDs []int, text string) (models.BroadcastMessage, error) {
	if strings.TrimSpace(text) == "" {
		return models.BroadcastMessage{}, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	snapshot := receiverIDs == nil
	if snapshot {
		receiverIDs = s.presence.BroadcastReceivers()
	}
	receivers, err := dedupe(receiverIDs)
	if err != nil {
		return models.BroadcastMessage{}, err
	}

	ctx, span := tracer.Start(ctx, "broadcast.forward", trace.WithAttributes(
		attribute.Int("sender_id", senderID),
		attribute.Int("receivers", len(receivers)),
		attribute.Bool("snapshot", snapshot),
	))
	defer span.End()

	msg, err := s.repo.Create(ctx, senderID, text, receivers)
	if err != nil {
		span.RecordError(err)
		return models.BroadcastMessage{}, fmt.Errorf("persist broadcast: %w", err)
	}

	// Receivers are not told who else got the message.
	pushed := msg
	pushed.ReceiverIDs = nil
	event := models.PushEvent{Type: models.EventBroadcast, Message: pushed}
	delivered := 0
	for _, receiverID := range receivers {
		handle, online := s.presence.LookupBroadcast(receiverID)
		if push(s.logger, models.EventBroadcast, handle, online, event) == observability.PushDelivered {
			delivered++
		}
	}
	span.SetAttributes(attribute.Int("delivered", delivered))
	s.logger.Debug("broadcast forwarded", "message_id", msg.ID, "sender_id", senderID, "receivers", len(receivers), "delivered", delivered, "snapshot", snapshot)
	return msg, nil
}

func dedupe(ids []int) ([]int, error) {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: receiver id %d", ErrInvalidInput, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// MarkRead flips the caller's receipt to READ and re-derives the parent's
// counts. Missing broadcasts and receipts are a no-op.
func (s *BroadcastService) MarkRead(ctx context.Context, id, receiverID int) (bool, error) {
	return s.setReceipt(ctx, id, receiverID, models.StatusRead)
}

// MarkUnread flips the caller's receipt back to UNREAD.
func (s *BroadcastService) MarkUnread(ctx context.Context, id, receiverID int) (bool, error) {
	return s.setReceipt(ctx, id, receiverID, models.StatusUnread)
}

func (s *BroadcastService) setReceipt(ctx context.Context, id, receiverID int, to models.MessageStatus) (bool, error) {
	changed, err := s.repo.SetReceiptStatus(ctx, id, receiverID, to)
	if errors.Is(err, archive.ErrNotFound) {
		return false, nil
	}
	return changed, err
}

func (s *BroadcastService) FindAllSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.BroadcastMessage, error) {
	return s.repo.FindAllSent(ctx, senderID, filter, page.Normalize())
}

// FindReceived lists live broadcasts addressed to receiverID. Archived
// broadcasts belong to their sender and are not listed for receivers.
func (s *BroadcastService) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.ReceivedBroadcast, error) {
	if filter.Archived {
		return nil, fmt.Errorf("%w: archived broadcasts are only listed for their sender", ErrInvalidInput)
	}
	return s.repo.FindReceived(ctx, receiverID, filter, page.Normalize())
}

// Get returns a broadcast the caller sent with its receipts.
func (s *BroadcastService) Get(ctx context.Context, id, senderID int) (BroadcastDetail, error) {
	msg, err := s.repo.FindByIDAndSender(ctx, id, senderID)
	if err != nil {
		return BroadcastDetail{}, err
	}
	receipts, err := s.repo.Receipts(ctx, id)
	if err != nil {
		return BroadcastDetail{}, err
	}
	return BroadcastDetail{BroadcastMessage: msg, Receipts: receipts}, nil
}

// Delete removes a broadcast the caller sent together with its receipts.
func (s *BroadcastService) Delete(ctx context.Context, id, senderID int) (bool, error) {
	return s.repo.DeleteBySender(ctx, id, senderID)
}

// Archive moves a broadcast the caller sent into the archive.
func (s *BroadcastService) Archive(ctx context.Context, id, senderID int) (models.BroadcastMessage, error) {
	if err := s.ownedBy(ctx, s.repo.Active(), id, senderID); err != nil {
		return models.BroadcastMessage{}, err
	}
	return s.lifecycle.Archive(ctx, id)
}

// Recover restores an archived broadcast the caller sent.
func (s *BroadcastService) Recover(ctx context.Context, id, senderID int) (models.BroadcastMessage, error) {
	if err := s.ownedBy(ctx, s.repo.Archived(), id, senderID); err != nil {
		return models.BroadcastMessage{}, err
	}
	return s.lifecycle.Recover(ctx, id)
}

func (s *BroadcastService) ownedBy(ctx context.Context, store archive.Store[models.BroadcastMessage], id, senderID int) error {
	msg, err := store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return repositories.ErrMessageNotFound
		}
		return err
	}
	if msg.SenderID != senderID {
		return repositories.ErrMessageNotFound
	}
	return nil
}
