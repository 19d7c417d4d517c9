package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type questProgress struct {
	ID            uuid.UUID  `db:"progress_id"`
	QuestID       uuid.UUID  `db:"quest_id"`
	MemberID      uuid.UUID  `db:"member_id"`
	PeriodStart   time.Time  `db:"period_start"`
	PeriodEnd     time.Time  `db:"period_end"`
	Completed     bool       `db:"completed"`
	CompletedAt   *time.Time `db:"completed_at"`
	PointsAwarded int        `db:"points_awarded"`
}

var questProgressColumns = []string{
	"progress_id", "quest_id", "member_id", "period_start", "period_end",
	"completed", "completed_at", "points_awarded",
}

func (p *questProgress) toModel() *model.QuestProgress {
	return &model.QuestProgress{
		ID:            p.ID,
		QuestID:       p.QuestID,
		MemberID:      p.MemberID,
		PeriodStart:   p.PeriodStart,
		PeriodEnd:     p.PeriodEnd,
		Completed:     p.Completed,
		CompletedAt:   p.CompletedAt,
		PointsAwarded: p.PointsAwarded,
	}
}

// GetQuestProgress finds a progress row whose window overlaps the given
// period.
func (r *Repository) GetQuestProgress(ctx context.Context, questID, memberID uuid.UUID, periodStart, periodEnd time.Time) (*model.QuestProgress, error) {
	query, args, err := squirrel.
		Select(questProgressColumns...).
		From("quest_progress").
		Where(squirrel.Eq{"quest_id": questID, "member_id": memberID}).
		Where(squirrel.GtOrEq{"period_end": periodStart}).
		Where(squirrel.LtOrEq{"period_start": periodEnd}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p questProgress
	err = r.db.GetContext(ctx, &p, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return p.toModel(), nil
}

// CreateQuestProgress inserts a fresh period row. The uniqueness constraint
// on (quest_id, member_id, period_start) makes the insert idempotent: a
// concurrent reset job creating the same period is a no-op, and the caller
// re-reads the existing row.
func (r *Repository) CreateQuestProgress(ctx context.Context, p *model.QuestProgress) (bool, error) {
	query, args, err := squirrel.
		Insert("quest_progress").
		SetMap(map[string]interface{}{
			"progress_id":    p.ID,
			"quest_id":       p.QuestID,
			"member_id":      p.MemberID,
			"period_start":   p.PeriodStart,
			"period_end":     p.PeriodEnd,
			"completed":      p.Completed,
			"points_awarded": p.PointsAwarded,
		}).
		Suffix("ON CONFLICT (quest_id, member_id, period_start) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build progress insert query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert quest progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// CompleteQuestProgress marks the period done. The completed predicate keeps
// a period from being awarded twice.
func (r *Repository) CompleteQuestProgress(ctx context.Context, progressID uuid.UUID, pointsAwarded int) error {
	query, args, err := squirrel.
		Update("quest_progress").
		SetMap(map[string]interface{}{
			"completed":      true,
			"completed_at":   time.Now().UTC(),
			"points_awarded": pointsAwarded,
		}).
		Where(squirrel.Eq{
			"progress_id": progressID,
			"completed":   false,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build progress completion query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to complete quest progress: %w", err)
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
