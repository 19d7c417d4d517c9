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
	"github.com/jmoiron/sqlx"
)

type duel struct {
	ID                uuid.UUID  `db:"duel_id"`
	ChallengerID      uuid.UUID  `db:"challenger_id"`
	ChallengedID      uuid.UUID  `db:"challenged_id"`
	MachineID         int64      `db:"htb_machine_id"`
	MachineName       string     `db:"htb_machine_name"`
	MachineDifficulty string     `db:"htb_machine_difficulty"`
	Status            string     `db:"status"`
	ChallengerStake   int        `db:"challenger_stake"`
	ChallengedStake   int        `db:"challenged_stake"`
	DurationHours     int        `db:"duration_hours"`
	EndsAt            *time.Time `db:"ends_at"`
	WinnerID          *uuid.UUID `db:"winner_id"`
	CreatedAt         time.Time  `db:"created_at"`
}

var duelColumns = []string{
	"duel_id", "challenger_id", "challenged_id", "htb_machine_id",
	"htb_machine_name", "htb_machine_difficulty", "status",
	"challenger_stake", "challenged_stake", "duration_hours",
	"ends_at", "winner_id", "created_at",
}

func (d *duel) toModel() *model.Duel {
	return &model.Duel{
		ID:                d.ID,
		ChallengerID:      d.ChallengerID,
		ChallengedID:      d.ChallengedID,
		MachineID:         d.MachineID,
		MachineName:       d.MachineName,
		MachineDifficulty: d.MachineDifficulty,
		Status:            model.DuelStatus(d.Status),
		ChallengerStake:   d.ChallengerStake,
		ChallengedStake:   d.ChallengedStake,
		DurationHours:     d.DurationHours,
		EndsAt:            d.EndsAt,
		WinnerID:          d.WinnerID,
		CreatedAt:         d.CreatedAt,
	}
}

func (r *Repository) CreateDuel(ctx context.Context, d *model.Duel) error {
	query, args, err := squirrel.
		Insert("duels").
		SetMap(map[string]interface{}{
			"duel_id":                d.ID,
			"challenger_id":          d.ChallengerID,
			"challenged_id":          d.ChallengedID,
			"htb_machine_id":         d.MachineID,
			"htb_machine_name":       d.MachineName,
			"htb_machine_difficulty": d.MachineDifficulty,
			"status":                 string(d.Status),
			"challenger_stake":       d.ChallengerStake,
			"challenged_stake":       d.ChallengedStake,
			"duration_hours":         d.DurationHours,
			"created_at":             d.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build duel insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert duel: %w", err)
	}

	return nil
}

func (r *Repository) GetDuelByID(ctx context.Context, duelID uuid.UUID) (*model.Duel, error) {
	query, args, err := squirrel.
		Select(duelColumns...).
		From("duels").
		Where(squirrel.Eq{"duel_id": duelID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var d duel
	err = r.db.GetContext(ctx, &d, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return d.toModel(), nil
}

// ActivateDuel locks both stakes and flips the duel to active as one
// database transaction. If either debit fails everything rolls back and the
// duel stays pending. The pending predicate makes concurrent accepts safe:
// only one caller flips the row.
func (r *Repository) ActivateDuel(ctx context.Context, duelID uuid.UUID, challengedStake int, endsAt time.Time, debits []*model.PointsTransaction) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("duels").
			SetMap(map[string]interface{}{
				"status":           string(model.DuelActive),
				"challenged_stake": challengedStake,
				"ends_at":          endsAt,
			}).
			Where(squirrel.Eq{
				"duel_id": duelID,
				"status":  string(model.DuelPending),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build duel activation query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to activate duel: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrDuelNotPending
		}

		for _, debit := range debits {
			if err := r.recordTransactionTx(ctx, tx, debit, false); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *Repository) CancelDuel(ctx context.Context, duelID uuid.UUID) error {
	query, args, err := squirrel.
		Update("duels").
		Set("status", string(model.DuelCancelled)).
		Where(squirrel.Eq{
			"duel_id": duelID,
			"status":  string(model.DuelPending),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build duel cancel query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to cancel duel: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDuelNotPending
	}

	return nil
}

// CompleteDuel pays the pot to the winner and closes the duel. The active
// predicate guards against double resolution.
func (r *Repository) CompleteDuel(ctx context.Context, duelID, winnerID uuid.UUID, payout *model.PointsTransaction) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("duels").
			SetMap(map[string]interface{}{
				"status":    string(model.DuelCompleted),
				"winner_id": winnerID,
			}).
			Where(squirrel.Eq{
				"duel_id": duelID,
				"status":  string(model.DuelActive),
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build duel completion query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to complete duel: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrDuelNotActive
		}

		if payout != nil {
			return r.recordTransactionTx(ctx, tx, payout, false)
		}
		return nil
	})
}

func (r *Repository) ListDuelsForMember(ctx context.Context, memberID uuid.UUID, status *model.DuelStatus) ([]*model.Duel, error) {
	builder := squirrel.
		Select(duelColumns...).
		From("duels").
		Where(squirrel.Or{
			squirrel.Eq{"challenger_id": memberID},
			squirrel.Eq{"challenged_id": memberID},
		}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if status != nil {
		builder = builder.Where(squirrel.Eq{"status": string(*status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []duel
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list duels: %w", err)
	}

	duels := make([]*model.Duel, len(rows))
	for i := range rows {
		duels[i] = rows[i].toModel()
	}

	return duels, nil
}
