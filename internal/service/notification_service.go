package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/websocket"
)

// NotificationService persists notifications and pushes them to live
// subscribers. Persistence always happens before the push so a subscriber
// arriving later can retrieve the history.
type NotificationService struct {
	notificationRepo domain.NotificationRepository
	accountRepo      domain.AccountRepository
	publisher        websocket.EventPublisher
	logger           zerolog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notificationRepo domain.NotificationRepository,
	accountRepo domain.AccountRepository,
	publisher websocket.EventPublisher,
	logger zerolog.Logger,
) *NotificationService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		accountRepo:      accountRepo,
		publisher:        publisher,
		logger:           logger.With().Str("service", "notification").Logger(),
	}
}

// Notify persists a notification for the account and pushes it to any live
// subscription. Delivery failures never fail the calling protocol.
func (s *NotificationService) Notify(ctx context.Context, accountID uuid.UUID, notifType, title, body string, data json.RawMessage) (*domain.Notification, error) {
	now := time.Now()
	n := &domain.Notification{
		AccountID: accountID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Data:      data,
		Status:    domain.NotificationStatusSent,
		SentAt:    &now,
	}

	created, err := s.notificationRepo.Create(ctx, n)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID.String()).Str("type", notifType).Msg("Failed to persist notification")
		return nil, err
	}

	s.publisher.Publish(accountID, websocket.NotificationDelivered(created))
	return created, nil
}

// NotifyOperators fans a notification out to every operator account.
func (s *NotificationService) NotifyOperators(ctx context.Context, notifType, title, body string, data json.RawMessage) {
	operators, err := s.accountRepo.ListByRole(ctx, domain.RoleOperator)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list operators for fan-out")
		return
	}
	for _, op := range operators {
		if _, err := s.Notify(ctx, op.ID, notifType, title, body, data); err != nil {
			s.logger.Warn().Err(err).Str("operator_id", op.ID.String()).Msg("Operator notification failed")
		}
	}
}

// List returns the account's notification feed, newest first.
func (s *NotificationService) List(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*domain.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.notificationRepo.ListByAccount(ctx, accountID, page, limit)
}

// UnreadCount returns the number of unread notifications for the account.
func (s *NotificationService) UnreadCount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.notificationRepo.CountUnread(ctx, accountID)
}

// MarkRead marks one notification read and emits a notification:read event.
func (s *NotificationService) MarkRead(ctx context.Context, id int64, accountID uuid.UUID) (*domain.Notification, error) {
	n, err := s.notificationRepo.MarkRead(ctx, id, accountID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(accountID, websocket.NotificationRead(id))
	return n, nil
}

// MarkAllRead marks the account's notifications read and emits a
// notifications:all-read event.
func (s *NotificationService) MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error) {
	count, err := s.notificationRepo.MarkAllRead(ctx, accountID)
	if err != nil {
		return 0, err
	}
	s.publisher.Publish(accountID, websocket.AllNotificationsRead(count))
	return count, nil
}

// IsOnline reports whether the account has a live subscription.
func (s *NotificationService) IsOnline(accountID uuid.UUID) bool {
	return s.publisher.IsOnline(accountID)
}
