package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type quest struct {
	ID                 uuid.UUID  `db:"quest_id"`
	Title              string     `db:"title"`
	Description        string     `db:"description"`
	PointsReward       int        `db:"points_reward"`
	Difficulty         string     `db:"difficulty"`
	CategoryID         *uuid.UUID `db:"category_id"`
	QuestType          string     `db:"quest_type"`
	Deadline           *time.Time `db:"deadline"`
	PenaltyPercentage  int        `db:"penalty_percentage"`
	RecurrenceType     string     `db:"recurrence_type"`
	RecurrenceResetDay *int       `db:"recurrence_reset_day"`
	Active             bool       `db:"active"`
	CreatedBy          uuid.UUID  `db:"created_by"`
	CreatedAt          time.Time  `db:"created_at"`
}

type memberQuest struct {
	ID             uuid.UUID  `db:"member_quest_id"`
	QuestID        uuid.UUID  `db:"quest_id"`
	MemberID       uuid.UUID  `db:"member_id"`
	Status         string     `db:"status"`
	AssignedAt     time.Time  `db:"assigned_at"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	ValidatedBy    *uuid.UUID `db:"validated_by"`
	SubmissionData []byte     `db:"submission_data"`
	Feedback       *string    `db:"feedback"`
	PointsEarned   *int       `db:"points_earned"`
	WasLate        bool       `db:"was_late"`
}

type memberQuestView struct {
	memberQuest
	QuestTitle   string     `db:"title"`
	PointsReward int        `db:"points_reward"`
	Difficulty   string     `db:"difficulty"`
	Deadline     *time.Time `db:"deadline"`
}

var questColumns = []string{
	"quest_id", "title", "description", "points_reward", "difficulty",
	"category_id", "quest_type", "deadline", "penalty_percentage",
	"recurrence_type", "recurrence_reset_day", "active", "created_by", "created_at",
}

var memberQuestColumns = []string{
	"member_quest_id", "quest_id", "member_id", "status", "assigned_at",
	"started_at", "completed_at", "validated_by", "submission_data",
	"feedback", "points_earned", "was_late",
}

func (q *quest) toModel() *model.Quest {
	return &model.Quest{
		ID:                 q.ID,
		Title:              q.Title,
		Description:        q.Description,
		PointsReward:       q.PointsReward,
		Difficulty:         model.QuestDifficulty(q.Difficulty),
		CategoryID:         q.CategoryID,
		QuestType:          model.QuestType(q.QuestType),
		Deadline:           q.Deadline,
		PenaltyPercentage:  q.PenaltyPercentage,
		RecurrenceType:     model.RecurrenceType(q.RecurrenceType),
		RecurrenceResetDay: q.RecurrenceResetDay,
		Active:             q.Active,
		CreatedBy:          q.CreatedBy,
		CreatedAt:          q.CreatedAt,
	}
}

func (mq *memberQuest) toModel() *model.MemberQuest {
	return &model.MemberQuest{
		ID:             mq.ID,
		QuestID:        mq.QuestID,
		MemberID:       mq.MemberID,
		Status:         model.MemberQuestStatus(mq.Status),
		AssignedAt:     mq.AssignedAt,
		StartedAt:      mq.StartedAt,
		CompletedAt:    mq.CompletedAt,
		ValidatedBy:    mq.ValidatedBy,
		SubmissionData: json.RawMessage(mq.SubmissionData),
		Feedback:       mq.Feedback,
		PointsEarned:   mq.PointsEarned,
		WasLate:        mq.WasLate,
	}
}

func (r *Repository) CreateQuest(ctx context.Context, q *model.Quest) error {
	query, args, err := squirrel.
		Insert("quests").
		SetMap(map[string]interface{}{
			"quest_id":             q.ID,
			"title":                q.Title,
			"description":          q.Description,
			"points_reward":        q.PointsReward,
			"difficulty":           string(q.Difficulty),
			"category_id":          q.CategoryID,
			"quest_type":           string(q.QuestType),
			"deadline":             q.Deadline,
			"penalty_percentage":   q.PenaltyPercentage,
			"recurrence_type":      string(q.RecurrenceType),
			"recurrence_reset_day": q.RecurrenceResetDay,
			"active":               q.Active,
			"created_by":           q.CreatedBy,
			"created_at":           q.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build quest insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert quest: %w", err)
	}

	return nil
}

func (r *Repository) GetQuestByID(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	query, args, err := squirrel.
		Select(questColumns...).
		From("quests").
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var q quest
	err = r.db.GetContext(ctx, &q, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return q.toModel(), nil
}

func (r *Repository) ListQuests(ctx context.Context, activeOnly bool) ([]*model.Quest, error) {
	builder := squirrel.
		Select(questColumns...).
		From("quests").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if activeOnly {
		builder = builder.Where(squirrel.Eq{"active": true})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []quest
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}

	quests := make([]*model.Quest, len(rows))
	for i := range rows {
		quests[i] = rows[i].toModel()
	}

	return quests, nil
}

func (r *Repository) ListRecurringQuests(ctx context.Context) ([]*model.Quest, error) {
	query, args, err := squirrel.
		Select(questColumns...).
		From("quests").
		Where(squirrel.Eq{"active": true}).
		Where(squirrel.NotEq{"recurrence_type": string(model.RecurrenceNone)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []quest
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring quests: %w", err)
	}

	quests := make([]*model.Quest, len(rows))
	for i := range rows {
		quests[i] = rows[i].toModel()
	}

	return quests, nil
}

// GetCompletedMemberIDs returns the subset of candidates that already hold a
// completed assignment for the quest. Used to enforce non-replayability.
func (r *Repository) GetCompletedMemberIDs(ctx context.Context, questID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.String()
	}

	query, args, err := squirrel.
		Select("member_id").
		From("member_quests").
		Where(squirrel.Eq{
			"quest_id": questID,
			"status":   string(model.StatusCompleted),
		}).
		Where(squirrel.Expr("member_id = ANY(?)", pq.Array(ids))).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var completed []uuid.UUID
	err = r.db.SelectContext(ctx, &completed, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed members: %w", err)
	}

	return completed, nil
}

// UpsertAssignments inserts assigned rows for the given members, ignoring
// members who already hold a row for this quest. Returns the number of rows
// actually created.
func (r *Repository) UpsertAssignments(ctx context.Context, questID uuid.UUID, memberIDs []uuid.UUID, assignedAt time.Time) (int, error) {
	if len(memberIDs) == 0 {
		return 0, nil
	}

	builder := squirrel.
		Insert("member_quests").
		Columns("member_quest_id", "quest_id", "member_id", "status", "assigned_at", "was_late")

	for _, memberID := range memberIDs {
		builder = builder.Values(uuid.New(), questID, memberID, string(model.StatusAssigned), assignedAt, false)
	}

	query, args, err := builder.
		Suffix("ON CONFLICT (quest_id, member_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build assignment insert query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert assignments: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(rows), nil
}

func (r *Repository) GetMemberQuest(ctx context.Context, questID, memberID uuid.UUID) (*model.MemberQuest, error) {
	query, args, err := squirrel.
		Select(memberQuestColumns...).
		From("member_quests").
		Where(squirrel.Eq{"quest_id": questID, "member_id": memberID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var mq memberQuest
	err = r.db.GetContext(ctx, &mq, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return mq.toModel(), nil
}

func (r *Repository) GetMemberQuestByID(ctx context.Context, memberQuestID uuid.UUID) (*model.MemberQuest, error) {
	query, args, err := squirrel.
		Select(memberQuestColumns...).
		From("member_quests").
		Where(squirrel.Eq{"member_quest_id": memberQuestID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var mq memberQuest
	err = r.db.GetContext(ctx, &mq, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return mq.toModel(), nil
}

// UpdateSubmission stores the payload and moves the assignment into
// in_progress or late. The status predicate keeps terminal rows untouched;
// re-submission while still open overwrites the previous payload.
func (r *Repository) UpdateSubmission(ctx context.Context, memberQuestID uuid.UUID, data json.RawMessage, status model.MemberQuestStatus, wasLate bool, submittedAt time.Time) error {
	query, args, err := squirrel.
		Update("member_quests").
		Set("submission_data", []byte(data)).
		Set("status", string(status)).
		Set("was_late", wasLate).
		Set("started_at", squirrel.Expr("COALESCE(started_at, ?)", submittedAt)).
		Where(squirrel.Eq{
			"member_quest_id": memberQuestID,
			"status": []string{
				string(model.StatusAssigned),
				string(model.StatusInProgress),
				string(model.StatusLate),
			},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build submission update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetMemberQuestByID(ctx, memberQuestID); err != nil {
			return err
		}
		return ErrNotSubmittable
	}

	return nil
}

// CompleteMemberQuest approves a submission. The status predicate is the
// concurrency guard: of two concurrent validators exactly one update wins,
// the other sees zero rows and reports ErrAlreadyValidated. The ledger
// credit rides in the same database transaction as the state change.
func (r *Repository) CompleteMemberQuest(ctx context.Context, memberQuestID, validatorID uuid.UUID, points int, credit *model.PointsTransaction) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		query, args, err := squirrel.
			Update("member_quests").
			SetMap(map[string]interface{}{
				"status":        string(model.StatusCompleted),
				"points_earned": points,
				"completed_at":  now,
				"validated_by":  validatorID,
			}).
			Where(squirrel.Eq{
				"member_quest_id": memberQuestID,
				"status": []string{
					string(model.StatusInProgress),
					string(model.StatusLate),
				},
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build completion query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to complete member quest: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			if err := r.diagnoseValidationTx(ctx, tx, memberQuestID); err != nil {
				return err
			}
			return ErrAlreadyValidated
		}

		if credit != nil {
			return r.recordTransactionTx(ctx, tx, credit, false)
		}
		return nil
	})
}

// FailMemberQuest rejects a submission. Same guard as completion, no
// ledger call.
func (r *Repository) FailMemberQuest(ctx context.Context, memberQuestID, validatorID uuid.UUID, feedback string) error {
	query, args, err := squirrel.
		Update("member_quests").
		SetMap(map[string]interface{}{
			"status":       string(model.StatusFailed),
			"validated_by": validatorID,
			"feedback":     feedback,
		}).
		Where(squirrel.Eq{
			"member_quest_id": memberQuestID,
			"status": []string{
				string(model.StatusInProgress),
				string(model.StatusLate),
			},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build rejection query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to fail member quest: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetMemberQuestByID(ctx, memberQuestID); err != nil {
			return err
		}
		return ErrAlreadyValidated
	}

	return nil
}

func (r *Repository) diagnoseValidationTx(ctx context.Context, tx *sqlx.Tx, memberQuestID uuid.UUID) error {
	query, args, err := squirrel.
		Select("status").
		From("member_quests").
		Where(squirrel.Eq{"member_quest_id": memberQuestID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	var status string
	err = tx.GetContext(ctx, &status, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// HasCompleted reports whether the member already completed this quest.
func (r *Repository) HasCompleted(ctx context.Context, questID, memberID uuid.UUID) (bool, error) {
	query, args, err := squirrel.
		Select("COUNT(*)").
		From("member_quests").
		Where(squirrel.Eq{
			"quest_id":  questID,
			"member_id": memberID,
			"status":    string(model.StatusCompleted),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *Repository) QuestsForMember(ctx context.Context, memberID uuid.UUID, status *model.MemberQuestStatus) ([]*model.MemberQuestView, error) {
	builder := squirrel.
		Select(
			"mq.member_quest_id", "mq.quest_id", "mq.member_id", "mq.status",
			"mq.assigned_at", "mq.started_at", "mq.completed_at", "mq.validated_by",
			"mq.submission_data", "mq.feedback", "mq.points_earned", "mq.was_late",
			"q.title", "q.points_reward", "q.difficulty", "q.deadline",
		).
		From("member_quests mq").
		Join("quests q ON q.quest_id = mq.quest_id").
		Where(squirrel.Eq{"mq.member_id": memberID}).
		OrderBy("mq.assigned_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if status != nil {
		builder = builder.Where(squirrel.Eq{"mq.status": string(*status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []memberQuestView
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get member quests: %w", err)
	}

	views := make([]*model.MemberQuestView, len(rows))
	for i, row := range rows {
		views[i] = &model.MemberQuestView{
			MemberQuest:  *row.memberQuest.toModel(),
			QuestTitle:   row.QuestTitle,
			PointsReward: row.PointsReward,
			Difficulty:   model.QuestDifficulty(row.Difficulty),
			Deadline:     row.Deadline,
		}
	}

	return views, nil
}

// ListAssignedMemberIDs returns every member holding an assignment row for
// the quest, regardless of its status. Used by the recurrence reset job.
func (r *Repository) ListAssignedMemberIDs(ctx context.Context, questID uuid.UUID) ([]uuid.UUID, error) {
	query, args, err := squirrel.
		Select("member_id").
		From("member_quests").
		Where(squirrel.Eq{"quest_id": questID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned members: %w", err)
	}

	return ids, nil
}
