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

type pointsTransaction struct {
	ID          uuid.UUID `db:"transaction_id"`
	MemberID    uuid.UUID `db:"member_id"`
	Amount      int       `db:"amount"`
	Source      string    `db:"source"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type memberBalance struct {
	MemberID    uuid.UUID `db:"member_id"`
	TotalPoints int       `db:"total_points"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type pointsRule struct {
	RuleType    string `db:"rule_type"`
	PointsValue int    `db:"points_value"`
	Active      bool   `db:"active"`
}

// RecordTransaction appends a ledger row and applies the same delta to the
// member's balance as a single database transaction. Both writes commit
// together or neither does.
func (r *Repository) RecordTransaction(ctx context.Context, t *model.PointsTransaction, allowNegative bool) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return r.recordTransactionTx(ctx, tx, t, allowNegative)
	})
}

// recordTransactionTx is the shared implementation for callers that compose
// a ledger write with other statements (duel escrow, quest completion).
func (r *Repository) recordTransactionTx(ctx context.Context, tx *sqlx.Tx, t *model.PointsTransaction, allowNegative bool) error {
	insertQuery, insertArgs, err := squirrel.
		Insert("points_transactions").
		SetMap(map[string]interface{}{
			"transaction_id": t.ID,
			"member_id":      t.MemberID,
			"amount":         t.Amount,
			"source":         string(t.Source),
			"description":    t.Description,
			"created_at":     t.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build transaction insert query: %w", err)
	}

	result, err := tx.ExecContext(ctx, insertQuery, insertArgs...)
	if err != nil {
		return fmt.Errorf("failed to insert points transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 1 {
		return ErrLedgerInconsistent
	}

	if t.Amount < 0 && !allowNegative {
		return r.applyGuardedDebitTx(ctx, tx, t.MemberID, -t.Amount)
	}
	return r.applyDeltaTx(ctx, tx, t.MemberID, t.Amount)
}

// applyDeltaTx increments the balance atomically, creating the balance row
// on first use. total_points = total_points + delta happens inside the
// database, never as a read-modify-write in application code.
func (r *Repository) applyDeltaTx(ctx context.Context, tx *sqlx.Tx, memberID uuid.UUID, delta int) error {
	query, args, err := squirrel.
		Insert("member_balances").
		SetMap(map[string]interface{}{
			"member_id":    memberID,
			"total_points": delta,
			"updated_at":   time.Now().UTC(),
		}).
		Suffix("ON CONFLICT (member_id) DO UPDATE SET " +
			"total_points = member_balances.total_points + EXCLUDED.total_points, " +
			"updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build balance upsert query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update member balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 1 {
		return ErrLedgerInconsistent
	}
	return nil
}

// applyGuardedDebitTx decrements the balance only when it would not go
// negative. Zero rows affected means the guard rejected the debit; the
// surrounding transaction rolls back the ledger row with it.
func (r *Repository) applyGuardedDebitTx(ctx context.Context, tx *sqlx.Tx, memberID uuid.UUID, amount int) error {
	query, args, err := squirrel.
		Update("member_balances").
		Set("total_points", squirrel.Expr("total_points - ?", amount)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"member_id": memberID}).
		Where(squirrel.GtOrEq{"total_points": amount}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build balance debit query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to debit member balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *Repository) GetBalance(ctx context.Context, memberID uuid.UUID) (int, error) {
	query, args, err := squirrel.
		Select("total_points").
		From("member_balances").
		Where(squirrel.Eq{"member_id": memberID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var points int
	err = r.db.GetContext(ctx, &points, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No ledger activity yet.
			return 0, nil
		}
		return 0, err
	}

	return points, nil
}

func (r *Repository) GetHistory(ctx context.Context, memberID uuid.UUID, limit int) ([]*model.PointsTransaction, error) {
	query, args, err := squirrel.
		Select("transaction_id", "member_id", "amount", "source", "description", "created_at").
		From("points_transactions").
		Where(squirrel.Eq{"member_id": memberID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []pointsTransaction
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	history := make([]*model.PointsTransaction, len(rows))
	for i, row := range rows {
		history[i] = &model.PointsTransaction{
			ID:          row.ID,
			MemberID:    row.MemberID,
			Amount:      row.Amount,
			Source:      model.PointsSource(row.Source),
			Description: row.Description,
			CreatedAt:   row.CreatedAt,
		}
	}

	return history, nil
}

func (r *Repository) GetPointsRule(ctx context.Context, ruleType string) (*model.PointsRule, error) {
	query, args, err := squirrel.
		Select("rule_type", "points_value", "active").
		From("points_rules").
		Where(squirrel.Eq{"rule_type": ruleType, "active": true}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rule pointsRule
	err = r.db.GetContext(ctx, &rule, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.PointsRule{
		RuleType:    rule.RuleType,
		PointsValue: rule.PointsValue,
		Active:      rule.Active,
	}, nil
}
