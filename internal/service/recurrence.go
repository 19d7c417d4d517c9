package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/repository"
	"htb_guild_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultWeeklyResetDay  = 1 // ISO Monday
	defaultMonthlyResetDay = 1
)

// Sentinel window for non-recurring quests: wide enough that a "none"
// period never expires in practice.
var (
	neverStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	neverEnd   = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// CurrentPeriod resolves the recurrence window containing now. Pure and
// deterministic; all boundaries are computed in now's location.
func CurrentPeriod(rtype model.RecurrenceType, resetDay int, now time.Time) (time.Time, time.Time) {
	switch rtype {
	case model.RecurrenceDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
		return start, end

	case model.RecurrenceWeekly:
		if resetDay < 1 || resetDay > 7 {
			resetDay = defaultWeeklyResetDay
		}
		// time.Weekday counts Sunday as 0; recurrence uses ISO weekdays
		// (1=Monday .. 7=Sunday).
		isoWeekday := int(now.Weekday())
		if isoWeekday == 0 {
			isoWeekday = 7
		}
		daysBack := (isoWeekday - resetDay + 7) % 7
		start := time.Date(now.Year(), now.Month(), now.Day()-daysBack, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 0, 6)
		end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, now.Location())
		return start, end

	case model.RecurrenceMonthly:
		if resetDay < 1 || resetDay > 31 {
			resetDay = defaultMonthlyResetDay
		}
		var start time.Time
		if now.Day() >= resetDay {
			start = time.Date(now.Year(), now.Month(), resetDay, 0, 0, 0, 0, now.Location())
		} else {
			start = time.Date(now.Year(), now.Month()-1, resetDay, 0, 0, 0, 0, now.Location())
		}
		end := start.AddDate(0, 1, -1)
		end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, now.Location())
		return start, end

	default:
		return neverStart, neverEnd
	}
}

func IsExpired(periodEnd, now time.Time) bool {
	return now.After(periodEnd)
}

type RecurrenceService struct {
	quests   QuestRepository
	progress ProgressRepository
}

func NewRecurrenceService(quests QuestRepository, progress ProgressRepository) *RecurrenceService {
	return &RecurrenceService{
		quests:   quests,
		progress: progress,
	}
}

// GetOrCreateProgress returns the member's progress row for the current
// period, creating a fresh incomplete one if none overlaps it. Creating is
// idempotent, so period rollover is safe to run any number of times.
func (s *RecurrenceService) GetOrCreateProgress(ctx context.Context, q *model.Quest, memberID uuid.UUID, now time.Time) (*model.QuestProgress, error) {
	resetDay := 0
	if q.RecurrenceResetDay != nil {
		resetDay = *q.RecurrenceResetDay
	}
	start, end := CurrentPeriod(q.RecurrenceType, resetDay, now)

	existing, err := s.progress.GetQuestProgress(ctx, q.ID, memberID, start, end)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get quest progress: %w", err)
	}

	fresh := &model.QuestProgress{
		ID:          uuid.New(),
		QuestID:     q.ID,
		MemberID:    memberID,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	created, err := s.progress.CreateQuestProgress(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest progress: %w", err)
	}
	if !created {
		// A concurrent reset job won the insert; use its row.
		return s.progress.GetQuestProgress(ctx, q.ID, memberID, start, end)
	}

	return fresh, nil
}

// CompleteProgress marks the current period done for the member.
func (s *RecurrenceService) CompleteProgress(ctx context.Context, q *model.Quest, memberID uuid.UUID, points int) error {
	if q.RecurrenceType == model.RecurrenceNone {
		return nil
	}

	progress, err := s.GetOrCreateProgress(ctx, q, memberID, time.Now().UTC())
	if err != nil {
		return err
	}
	if progress.Completed {
		return nil
	}

	return s.progress.CompleteQuestProgress(ctx, progress.ID, points)
}

// ResetExpiredQuests rolls every active recurring quest over to the current
// period for every assigned member. Invoked by an external scheduler;
// at-least-once safe because its only effect is get-or-create. Returns the
// number of open progress rows in the current period.
func (s *RecurrenceService) ResetExpiredQuests(ctx context.Context) (int, error) {
	log := logger.Logger()

	quests, err := s.quests.ListRecurringQuests(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring quests: %w", err)
	}

	now := time.Now().UTC()
	resetCount := 0

	for _, q := range quests {
		memberIDs, err := s.quests.ListAssignedMemberIDs(ctx, q.ID)
		if err != nil {
			log.Error("failed to list assigned members",
				zap.String("quest_id", q.ID.String()), zap.Error(err))
			continue
		}

		for _, memberID := range memberIDs {
			progress, err := s.GetOrCreateProgress(ctx, q, memberID, now)
			if err != nil {
				log.Error("failed to roll quest period",
					zap.String("quest_id", q.ID.String()),
					zap.String("member_id", memberID.String()),
					zap.Error(err))
				continue
			}
			if !progress.Completed {
				resetCount++
			}
		}
	}

	return resetCount, nil
}
