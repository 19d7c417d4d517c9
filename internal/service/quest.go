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
	maxPenaltyPercentage = 50
)

type QuestService struct {
	repo     QuestRepository
	members  MemberRepository
	ranks    RankUpdater
	progress ProgressTracker
	notifier Notifier
}

func NewQuestService(repo QuestRepository, members MemberRepository, ranks RankUpdater, progress ProgressTracker, notifier Notifier) *QuestService {
	return &QuestService{
		repo:     repo,
		members:  members,
		ranks:    ranks,
		progress: progress,
		notifier: notifier,
	}
}

// QuestPoints applies the late penalty to a reward: the earned amount is
// floor(reward * (100 - penalty) / 100), never negative.
func QuestPoints(reward, penaltyPercentage int, wasLate bool) int {
	if reward <= 0 {
		return 0
	}
	if !wasLate || penaltyPercentage <= 0 {
		return reward
	}
	points := reward * (100 - penaltyPercentage) / 100
	if points < 0 {
		points = 0
	}
	return points
}

func (s *QuestService) CreateQuest(ctx context.Context, q *model.Quest) error {
	if q.Title == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	if q.PointsReward < 0 {
		return &ValidationError{Field: "points_reward", Message: "must not be negative"}
	}
	if !q.Difficulty.Valid() {
		return &ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", q.Difficulty)}
	}
	if !q.QuestType.Valid() {
		return &ValidationError{Field: "quest_type", Message: fmt.Sprintf("unknown quest type %q", q.QuestType)}
	}
	if q.PenaltyPercentage < 0 || q.PenaltyPercentage > maxPenaltyPercentage {
		return &ValidationError{Field: "penalty_percentage", Message: "must be between 0 and 50"}
	}
	if !q.RecurrenceType.Valid() {
		return &ValidationError{Field: "recurrence_type", Message: fmt.Sprintf("unknown recurrence type %q", q.RecurrenceType)}
	}

	q.ID = uuid.New()
	q.Active = true
	q.CreatedAt = time.Now().UTC()

	if err := s.repo.CreateQuest(ctx, q); err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}

	return nil
}

func (s *QuestService) GetQuest(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	q, err := s.repo.GetQuestByID(ctx, questID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return q, nil
}

func (s *QuestService) ListQuests(ctx context.Context, activeOnly bool) ([]*model.Quest, error) {
	quests, err := s.repo.ListQuests(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	return quests, nil
}

func (s *QuestService) QuestsForMember(ctx context.Context, memberID uuid.UUID, status *model.MemberQuestStatus) ([]*model.MemberQuestView, error) {
	views, err := s.repo.QuestsForMember(ctx, memberID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get member quests: %w", err)
	}
	return views, nil
}

// Assign creates assigned rows for the targets, skipping members who have
// already completed the quest. Re-assigning a never-started quest is a
// no-op thanks to the (quest, member) uniqueness, not a duplicate. Returns
// the number of fresh assignments.
func (s *QuestService) Assign(ctx context.Context, questID uuid.UUID, memberIDs []uuid.UUID, assignToAll bool) (int, error) {
	q, err := s.GetQuest(ctx, questID)
	if err != nil {
		return 0, err
	}

	if assignToAll {
		memberIDs, err = s.members.ListMemberIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list members: %w", err)
		}
	}
	if len(memberIDs) == 0 {
		return 0, &ValidationError{Field: "member_ids", Message: "no target members"}
	}

	completed, err := s.repo.GetCompletedMemberIDs(ctx, questID, memberIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to check completions: %w", err)
	}
	completedSet := make(map[uuid.UUID]struct{}, len(completed))
	for _, id := range completed {
		completedSet[id] = struct{}{}
	}

	eligible := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, done := completedSet[id]; !done {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	count, err := s.repo.UpsertAssignments(ctx, questID, eligible, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to assign quest: %w", err)
	}

	for _, memberID := range eligible {
		s.notifier.Notify(ctx, memberID, model.NotifyQuestAssigned,
			"New quest assigned",
			fmt.Sprintf("The quest %q has been assigned to you", q.Title),
			map[string]interface{}{"quest_id": questID.String()})
	}

	return count, nil
}

// Submit stores the submission payload and moves the assignment to
// in_progress, or to late when the deadline has passed. The first
// submission marks started_at; re-submitting while still open overwrites
// the payload and re-evaluates lateness.
func (s *QuestService) Submit(ctx context.Context, questID, memberID uuid.UUID, submission map[string]interface{}) error {
	mq, err := s.repo.GetMemberQuest(ctx, questID, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("failed to get assignment: %w", err)
	}

	q, err := s.GetQuest(ctx, questID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	wasLate := q.Deadline != nil && now.After(*q.Deadline)
	status := model.StatusInProgress
	if wasLate {
		status = model.StatusLate
	}

	if !mq.Status.CanTransition(status) {
		return ErrNotSubmittable
	}

	data, err := json.Marshal(submission)
	if err != nil {
		return &ValidationError{Field: "submission_data", Message: "not serializable"}
	}

	err = s.repo.UpdateSubmission(ctx, mq.ID, data, status, wasLate, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrAssignmentNotFound
		case errors.Is(err, repository.ErrNotSubmittable):
			return ErrNotSubmittable
		}
		return fmt.Errorf("failed to submit quest: %w", err)
	}

	return nil
}

// Validate settles a submission. The in_progress/late precondition is the
// concurrency guard: of two concurrent validations exactly one transitions
// the row, the other returns ErrAlreadyValidated and credits nothing, so
// points can never be awarded twice. Rank recompute and notification come
// after the ledger commit; their failure is logged, never rolled into the
// award.
func (s *QuestService) Validate(ctx context.Context, memberQuestID uuid.UUID, approve bool, validatorID uuid.UUID, feedback string) error {
	log := logger.Logger()

	mq, err := s.repo.GetMemberQuestByID(ctx, memberQuestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("failed to get assignment: %w", err)
	}

	if mq.Status != model.StatusInProgress && mq.Status != model.StatusLate {
		return ErrAlreadyValidated
	}

	q, err := s.GetQuest(ctx, mq.QuestID)
	if err != nil {
		return err
	}

	if !approve {
		err = s.repo.FailMemberQuest(ctx, memberQuestID, validatorID, feedback)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return ErrAssignmentNotFound
			case errors.Is(err, repository.ErrAlreadyValidated):
				return ErrAlreadyValidated
			}
			return fmt.Errorf("failed to reject submission: %w", err)
		}

		message := feedback
		if message == "" {
			message = "Your submission was rejected. Try again."
		}
		s.notifier.Notify(ctx, mq.MemberID, model.NotifyQuestRejected,
			"Quest rejected", message,
			map[string]interface{}{"quest_id": mq.QuestID.String()})
		return nil
	}

	points := QuestPoints(q.PointsReward, q.PenaltyPercentage, mq.WasLate)

	var credit *model.PointsTransaction
	if points > 0 {
		credit = &model.PointsTransaction{
			ID:          uuid.New(),
			MemberID:    mq.MemberID,
			Amount:      points,
			Source:      model.SourceQuestCompletion,
			Description: fmt.Sprintf("Quest completed: %s", q.Title),
			CreatedAt:   time.Now().UTC(),
		}
	}

	err = s.repo.CompleteMemberQuest(ctx, memberQuestID, validatorID, points, credit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrAssignmentNotFound
		case errors.Is(err, repository.ErrAlreadyValidated):
			return ErrAlreadyValidated
		}
		return fmt.Errorf("failed to complete submission: %w", err)
	}

	if q.RecurrenceType != model.RecurrenceNone {
		if err := s.progress.CompleteProgress(ctx, q, mq.MemberID, points); err != nil {
			log.Error("failed to complete quest progress",
				zap.String("quest_id", q.ID.String()),
				zap.String("member_id", mq.MemberID.String()),
				zap.Error(err))
		}
	}

	if err := s.ranks.UpdateMemberRank(ctx, mq.MemberID); err != nil {
		log.Error("failed to update member rank",
			zap.String("member_id", mq.MemberID.String()), zap.Error(err))
	}

	s.notifier.Notify(ctx, mq.MemberID, model.NotifyQuestValidated,
		"Quest validated!",
		fmt.Sprintf("Your submission for %q was approved. +%d points!", q.Title, points),
		map[string]interface{}{"quest_id": mq.QuestID.String(), "points": points})

	return nil
}

// CanReplay reports whether the member may be assigned the quest again:
// true until a completed row exists for the pair.
func (s *QuestService) CanReplay(ctx context.Context, questID, memberID uuid.UUID) (bool, error) {
	done, err := s.repo.HasCompleted(ctx, questID, memberID)
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}
	return !done, nil
}
