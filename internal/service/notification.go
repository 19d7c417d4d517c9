package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/repository"
	"htb_guild_backend/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultNotificationLimit = 10
	dispatchBatchSize        = 50
)

type NotificationService struct {
	repo NotificationRepository
}

func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// Notify writes an outbox row for later delivery. Fire-and-forget: a
// failure here is logged and never reaches the caller, so a broken
// notification path can never roll back a ledger write or a state
// transition.
func (s *NotificationService) Notify(ctx context.Context, memberID uuid.UUID, t model.NotificationType, title, message string, data map[string]interface{}) {
	log := logger.Logger()

	payload, err := json.Marshal(data)
	if err != nil {
		log.Error("failed to marshal notification data",
			zap.String("type", string(t)), zap.Error(err))
		payload = []byte("{}")
	}

	n := &model.Notification{
		ID:        uuid.New(),
		MemberID:  memberID,
		Type:      t,
		Title:     title,
		Message:   message,
		Data:      payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		log.Error("failed to record notification",
			zap.String("member_id", memberID.String()),
			zap.String("type", string(t)),
			zap.Error(err))
	}
}

func (s *NotificationService) List(ctx context.Context, memberID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	notifications, err := s.repo.ListNotifications(ctx, memberID, limit, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, notificationID, memberID uuid.UUID) error {
	err := s.repo.MarkNotificationRead(ctx, notificationID, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, memberID uuid.UUID) error {
	return s.repo.MarkAllNotificationsRead(ctx, memberID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, memberID uuid.UUID) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, memberID)
}

// Dispatcher drains the outbox on an interval and hands rows to the
// delivery transport. Rows whose emit fails stay undispatched and are
// retried on the next tick.
type Dispatcher struct {
	repo     NotificationRepository
	emitter  Emitter
	interval time.Duration
}

func NewDispatcher(repo NotificationRepository, emitter Emitter, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		repo:     repo,
		emitter:  emitter,
		interval: interval,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchOnce(ctx)
		}
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	log := logger.Logger()

	pending, err := d.repo.ListUndispatched(ctx, dispatchBatchSize)
	if err != nil {
		log.Error("failed to read notification outbox", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	delivered := make([]uuid.UUID, 0, len(pending))
	for _, n := range pending {
		if err := d.emitter.Emit(ctx, n); err != nil {
			log.Error("failed to emit notification",
				zap.String("notification_id", n.ID.String()), zap.Error(err))
			continue
		}
		delivered = append(delivered, n.ID)
	}

	if err := d.repo.MarkDispatched(ctx, delivered); err != nil {
		log.Error("failed to mark notifications dispatched", zap.Error(err))
	}
}

// LogEmitter is the default transport: it only writes the notification to
// the log. Real delivery (mail, chat webhooks) plugs in behind Emitter.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, n *model.Notification) error {
	logger.Logger().Info("notification",
		zap.String("member_id", n.MemberID.String()),
		zap.String("type", string(n.Type)),
		zap.String("title", n.Title),
		zap.String("message", n.Message))
	return nil
}
