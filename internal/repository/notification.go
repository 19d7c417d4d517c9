package repository

import (
	"context"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type notification struct {
	ID           uuid.UUID  `db:"notification_id"`
	MemberID     uuid.UUID  `db:"member_id"`
	Type         string     `db:"type"`
	Title        string     `db:"title"`
	Message      string     `db:"message"`
	Data         []byte     `db:"data"`
	Read         bool       `db:"read"`
	DispatchedAt *time.Time `db:"dispatched_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

var notificationColumns = []string{
	"notification_id", "member_id", "type", "title", "message",
	"data", "read", "dispatched_at", "created_at",
}

func (n *notification) toModel() *model.Notification {
	return &model.Notification{
		ID:           n.ID,
		MemberID:     n.MemberID,
		Type:         model.NotificationType(n.Type),
		Title:        n.Title,
		Message:      n.Message,
		Data:         json.RawMessage(n.Data),
		Read:         n.Read,
		DispatchedAt: n.DispatchedAt,
		CreatedAt:    n.CreatedAt,
	}
}

func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	query, args, err := squirrel.
		Insert("notifications").
		SetMap(map[string]interface{}{
			"notification_id": n.ID,
			"member_id":       n.MemberID,
			"type":            string(n.Type),
			"title":           n.Title,
			"message":         n.Message,
			"data":            []byte(n.Data),
			"read":            false,
			"created_at":      n.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build notification insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

func (r *Repository) ListNotifications(ctx context.Context, memberID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error) {
	builder := squirrel.
		Select(notificationColumns...).
		From("notifications").
		Where(squirrel.Eq{"member_id": memberID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)
	if unreadOnly {
		builder = builder.Where(squirrel.Eq{"read": false})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []notification
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	notifications := make([]*model.Notification, len(rows))
	for i := range rows {
		notifications[i] = rows[i].toModel()
	}

	return notifications, nil
}

func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID, memberID uuid.UUID) error {
	query, args, err := squirrel.
		Update("notifications").
		Set("read", true).
		Where(squirrel.Eq{
			"notification_id": notificationID,
			"member_id":       memberID,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, memberID uuid.UUID) error {
	query, args, err := squirrel.
		Update("notifications").
		Set("read", true).
		Where(squirrel.Eq{"member_id": memberID, "read": false}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	return nil
}

func (r *Repository) CountUnreadNotifications(ctx context.Context, memberID uuid.UUID) (int, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("notifications").
		Where(squirrel.Eq{"member_id": memberID, "read": false}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// ListUndispatched returns outbox rows the dispatcher has not yet handed to
// the delivery transport, oldest first.
func (r *Repository) ListUndispatched(ctx context.Context, limit int) ([]*model.Notification, error) {
	query, args, err := squirrel.
		Select(notificationColumns...).
		From("notifications").
		Where(squirrel.Eq{"dispatched_at": nil}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []notification
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list undispatched notifications: %w", err)
	}

	notifications := make([]*model.Notification, len(rows))
	for i := range rows {
		notifications[i] = rows[i].toModel()
	}

	return notifications, nil
}

func (r *Repository) MarkDispatched(ctx context.Context, notificationIDs []uuid.UUID) error {
	if len(notificationIDs) == 0 {
		return nil
	}

	ids := make([]string, len(notificationIDs))
	for i, id := range notificationIDs {
		ids[i] = id.String()
	}

	query, args, err := squirrel.
		Update("notifications").
		Set("dispatched_at", time.Now().UTC()).
		Where(squirrel.Expr("notification_id = ANY(?)", pq.Array(ids))).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notifications dispatched: %w", err)
	}

	return nil
}
