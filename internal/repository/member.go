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

type member struct {
	ID            uuid.UUID  `db:"member_id"`
	Username      string     `db:"username"`
	DisplayName   string     `db:"display_name"`
	IsAdmin       bool       `db:"is_admin"`
	CurrentRankID *uuid.UUID `db:"current_rank_id"`
	HTBUserID     *int64     `db:"htb_user_id"`
	CreatedAt     time.Time  `db:"created_at"`
}

type leaderboardRow struct {
	MemberID    uuid.UUID `db:"member_id"`
	Username    string    `db:"username"`
	DisplayName string    `db:"display_name"`
	TotalPoints int       `db:"total_points"`
	RankName    *string   `db:"rank_name"`
}

func (r *Repository) GetMemberByID(ctx context.Context, memberID uuid.UUID) (*model.Member, error) {
	query, args, err := squirrel.
		Select(
			"m.member_id", "m.username", "m.display_name", "m.is_admin",
			"m.current_rank_id", "m.created_at", "h.htb_user_id",
		).
		From("members m").
		LeftJoin("htb_profiles h ON h.member_id = m.member_id").
		Where(squirrel.Eq{"m.member_id": memberID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var m member
	err = r.db.GetContext(ctx, &m, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.Member{
		ID:            m.ID,
		Username:      m.Username,
		DisplayName:   m.DisplayName,
		IsAdmin:       m.IsAdmin,
		CurrentRankID: m.CurrentRankID,
		HTBUserID:     m.HTBUserID,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func (r *Repository) ListMemberIDs(ctx context.Context) ([]uuid.UUID, error) {
	query, args, err := squirrel.
		Select("member_id").
		From("members").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return ids, nil
}

func (r *Repository) SetMemberRank(ctx context.Context, memberID, rankID uuid.UUID) error {
	query, args, err := squirrel.
		Update("members").
		Set("current_rank_id", rankID).
		Where(squirrel.Eq{"member_id": memberID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update member rank: %w", err)
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

// GetLeaderboard returns the top members by balance. Ordering is
// deterministic: points first, member id as the tiebreak.
func (r *Repository) GetLeaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	query, args, err := squirrel.
		Select(
			"m.member_id", "m.username", "m.display_name",
			"COALESCE(b.total_points, 0) AS total_points",
			"r.display_name AS rank_name",
		).
		From("members m").
		LeftJoin("member_balances b ON b.member_id = m.member_id").
		LeftJoin("ranks r ON r.rank_id = m.current_rank_id").
		OrderBy("total_points DESC", "m.member_id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []leaderboardRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	entries := make([]*model.LeaderboardEntry, len(rows))
	for i, row := range rows {
		entry := &model.LeaderboardEntry{
			Position:    i + 1,
			MemberID:    row.MemberID,
			Username:    row.Username,
			DisplayName: row.DisplayName,
			TotalPoints: row.TotalPoints,
		}
		if row.RankName != nil {
			entry.RankName = *row.RankName
		}
		entries[i] = entry
	}

	return entries, nil
}
