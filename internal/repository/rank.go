package repository

import (
	"context"
	"fmt"

	"htb_guild_backend/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type rank struct {
	ID             uuid.UUID `db:"rank_id"`
	Name           string    `db:"name"`
	DisplayName    string    `db:"display_name"`
	PointsRequired int       `db:"points_required"`
	Color          string    `db:"color"`
	Icon           string    `db:"icon"`
	OrderIndex     int       `db:"order_index"`
}

func (r *Repository) ListRanks(ctx context.Context) ([]*model.Rank, error) {
	query, args, err := squirrel.
		Select("rank_id", "name", "display_name", "points_required", "color", "icon", "order_index").
		From("ranks").
		OrderBy("order_index ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []rank
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranks: %w", err)
	}

	ranks := make([]*model.Rank, len(rows))
	for i, row := range rows {
		ranks[i] = &model.Rank{
			ID:             row.ID,
			Name:           row.Name,
			DisplayName:    row.DisplayName,
			PointsRequired: row.PointsRequired,
			Color:          row.Color,
			Icon:           row.Icon,
			OrderIndex:     row.OrderIndex,
		}
	}

	return ranks, nil
}
