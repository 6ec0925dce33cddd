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
	"notification-service/internal/repositories"
)

// SubscriptionService sends one-to-one messages and tracks their read state.
type SubscriptionService struct {
	repo      repositories.SubscriptionRepository
	presence  Presence
	lifecycle *archive.Lifecycle[models.SubscriptionMessage]
	logger    *slog.Logger
}

func NewSubscriptionService(repo repositories.SubscriptionRepository, presence Presence, deps LifecycleDeps) *SubscriptionService {
	deps.Logger = loggerOrDefault(deps.Logger)
	return &SubscriptionService{
		repo:      repo,
		presence:  presence,
		lifecycle: newLifecycle(deps, "subscription_message", repo.Active(), repo.Archived(), nil),
		logger:    deps.Logger.With("component", "subscription"),
	}
}

// Forward persists the message and pushes it to the receiver's channel for
// this sender if one is open. A failed push never fails the send.
func (s *SubscriptionService) Forward(ctx context.Context, senderID, receiverID int, text string) (models.SubscriptionMessage, error) {
	if receiverID <= 0 || strings.TrimSpace(text) == "" {
		return models.SubscriptionMessage{}, fmt.Errorf("%w: receiver and message are required", ErrInvalidInput)
	}
	ctx, span := tracer.Start(ctx, "subscription.forward", trace.WithAttributes(
		attribute.Int("sender_id", senderID),
		attribute.Int("receiver_id", receiverID),
	))
	defer span.End()

	msg, err := s.repo.Create(ctx, senderID, receiverID, text)
	if err != nil {
		span.RecordError(err)
		return models.SubscriptionMessage{}, fmt.Errorf("persist message: %w", err)
	}

	handle, online := s.presence.LookupSubscription(receiverID, senderID)
	outcome := push(s.logger, models.EventSubscription, handle, online, models.PushEvent{Type: models.EventSubscription, Message: msg})
	span.SetAttributes(attribute.String("push", outcome))
	s.logger.Debug("subscription forwarded", "message_id", msg.ID, "sender_id", senderID, "receiver_id", receiverID, "push", outcome)
	return msg, nil
}

// MarkRead flips an UNREAD message addressed to receiverID. It reports
// whether anything changed; unknown or foreign ids are a no-op.
func (s *SubscriptionService) MarkRead(ctx context.Context, id, receiverID int) (bool, error) {
	return s.repo.UpdateStatus(ctx, id, receiverID, models.StatusUnread, models.StatusRead)
}

// MarkUnread flips a READ message addressed to receiverID back to UNREAD.
func (s *SubscriptionService) MarkUnread(ctx context.Context, id, receiverID int) (bool, error) {
	return s.repo.UpdateStatus(ctx, id, receiverID, models.StatusRead, models.StatusUnread)
}

// Delete removes the live and archived copies of a message the caller sent.
func (s *SubscriptionService) Delete(ctx context.Context, id, senderID int) (bool, error) {
	return s.repo.DeleteBySender(ctx, id, senderID)
}

// Get returns a message the account sent or received.
func (s *SubscriptionService) Get(ctx context.Context, id, accountID int) (models.SubscriptionMessage, error) {
	return s.repo.FindForAccount(ctx, id, accountID)
}

func (s *SubscriptionService) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	return s.repo.FindReceived(ctx, receiverID, filter, page.Normalize())
}

func (s *SubscriptionService) FindSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	return s.repo.FindSent(ctx, senderID, filter, page.Normalize())
}

// Archive moves a message the caller sent into the archive.
func (s *SubscriptionService) Archive(ctx context.Context, id, senderID int) (models.SubscriptionMessage, error) {
	if err := s.ownedBy(ctx, s.repo.Active(), id, senderID); err != nil {
		return models.SubscriptionMessage{}, err
	}
	return s.lifecycle.Archive(ctx, id)
}

// Recover restores an archived message the caller sent.
func (s *SubscriptionService) Recover(ctx context.Context, id, senderID int) (models.SubscriptionMessage, error) {
	if err := s.ownedBy(ctx, s.repo.Archived(), id, senderID); err != nil {
		return models.SubscriptionMessage{}, err
	}
	return s.lifecycle.Recover(ctx, id)
}

func (s *SubscriptionService) ownedBy(ctx context.Context, store archive.Store[models.SubscriptionMessage], id, senderID int) error {
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
