package service

import (
	"context"
	"testing"
	"time"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/repository"
	"htb_guild_backend/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestQuestPoints(t *testing.T) {
	tests := []struct {
		name    string
		reward  int
		penalty int
		wasLate bool
		want    int
	}{
		{name: "on time keeps the full reward", reward: 100, penalty: 20, wasLate: false, want: 100},
		{name: "late loses the penalty share", reward: 100, penalty: 20, wasLate: true, want: 80},
		{name: "odd reward rounds down", reward: 7, penalty: 50, wasLate: true, want: 3},
		{name: "late with no penalty configured", reward: 100, penalty: 0, wasLate: true, want: 100},
		{name: "zero reward stays zero", reward: 0, penalty: 50, wasLate: true, want: 0},
		{name: "single point halved rounds to zero", reward: 1, penalty: 50, wasLate: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuestPoints(tt.reward, tt.penalty, tt.wasLate)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, tt.reward)
		})
	}
}

type questServiceMocks struct {
	repo     *mocks.MockQuestRepository
	members  *mocks.MockMemberRepository
	ranks    *mocks.MockRankUpdater
	progress *mocks.MockProgressTracker
	notifier *mocks.MockNotifier
}

func newQuestService() (*QuestService, *questServiceMocks) {
	m := &questServiceMocks{
		repo:     &mocks.MockQuestRepository{},
		members:  &mocks.MockMemberRepository{},
		ranks:    &mocks.MockRankUpdater{},
		progress: &mocks.MockProgressTracker{},
		notifier: &mocks.MockNotifier{},
	}
	return NewQuestService(m.repo, m.members, m.ranks, m.progress, m.notifier), m
}

func (m *questServiceMocks) assertAll(t *testing.T) {
	m.repo.AssertExpectations(t)
	m.members.AssertExpectations(t)
	m.ranks.AssertExpectations(t)
	m.progress.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func TestQuestService_CreateQuest(t *testing.T) {
	tests := []struct {
		name    string
		quest   *model.Quest
		wantErr string
	}{
		{
			name: "valid quest",
			quest: &model.Quest{
				Title:          "Own the weekly machine",
				PointsReward:   50,
				Difficulty:     model.DifficultyMedium,
				QuestType:      model.QuestTypeManual,
				RecurrenceType: model.RecurrenceWeekly,
			},
		},
		{
			name: "missing title",
			quest: &model.Quest{
				Difficulty:     model.DifficultyEasy,
				QuestType:      model.QuestTypeManual,
				RecurrenceType: model.RecurrenceNone,
			},
			wantErr: "title: required",
		},
		{
			name: "penalty above the cap",
			quest: &model.Quest{
				Title:             "Late quest",
				Difficulty:        model.DifficultyEasy,
				QuestType:         model.QuestTypeManual,
				PenaltyPercentage: 80,
				RecurrenceType:    model.RecurrenceNone,
			},
			wantErr: "penalty_percentage: must be between 0 and 50",
		},
		{
			name: "unknown difficulty",
			quest: &model.Quest{
				Title:          "Weird quest",
				Difficulty:     model.QuestDifficulty("impossible"),
				QuestType:      model.QuestTypeManual,
				RecurrenceType: model.RecurrenceNone,
			},
			wantErr: `difficulty: unknown difficulty "impossible"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := newQuestService()
			if tt.wantErr == "" {
				m.repo.On("CreateQuest", mock.Anything, mock.MatchedBy(func(q *model.Quest) bool {
					return q.ID != uuid.Nil && q.Active
				})).Return(nil)
			}

			err := service.CreateQuest(context.Background(), tt.quest)

			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			m.assertAll(t)
		})
	}
}

func TestQuestService_Assign(t *testing.T) {
	questID := uuid.New()
	memberA := uuid.New()
	memberB := uuid.New()
	quest := &model.Quest{ID: questID, Title: "Root the box"}

	t.Run("skips members who already completed", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.repo.On("GetCompletedMemberIDs", mock.Anything, questID, []uuid.UUID{memberA, memberB}).
			Return([]uuid.UUID{memberB}, nil)
		m.repo.On("UpsertAssignments", mock.Anything, questID, []uuid.UUID{memberA}, mock.Anything).
			Return(1, nil)
		m.notifier.On("Notify", mock.Anything, memberA, model.NotifyQuestAssigned,
			mock.Anything, mock.Anything, mock.Anything).Return()

		count, err := service.Assign(context.Background(), questID, []uuid.UUID{memberA, memberB}, false)

		assert.NoError(t, err)
		assert.Equal(t, 1, count)
		m.assertAll(t)
	})

	t.Run("assign to all resolves the member list", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.members.On("ListMemberIDs", mock.Anything).Return([]uuid.UUID{memberA, memberB}, nil)
		m.repo.On("GetCompletedMemberIDs", mock.Anything, questID, []uuid.UUID{memberA, memberB}).
			Return([]uuid.UUID{}, nil)
		m.repo.On("UpsertAssignments", mock.Anything, questID, []uuid.UUID{memberA, memberB}, mock.Anything).
			Return(2, nil)
		m.notifier.On("Notify", mock.Anything, mock.Anything, model.NotifyQuestAssigned,
			mock.Anything, mock.Anything, mock.Anything).Return().Times(2)

		count, err := service.Assign(context.Background(), questID, nil, true)

		assert.NoError(t, err)
		assert.Equal(t, 2, count)
		m.assertAll(t)
	})

	t.Run("all targets already completed is a clean no-op", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.repo.On("GetCompletedMemberIDs", mock.Anything, questID, []uuid.UUID{memberB}).
			Return([]uuid.UUID{memberB}, nil)

		count, err := service.Assign(context.Background(), questID, []uuid.UUID{memberB}, false)

		assert.NoError(t, err)
		assert.Equal(t, 0, count)
		m.assertAll(t)
	})

	t.Run("unknown quest", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetQuestByID", mock.Anything, questID).Return(nil, repository.ErrNotFound)

		_, err := service.Assign(context.Background(), questID, []uuid.UUID{memberA}, false)

		assert.ErrorIs(t, err, ErrQuestNotFound)
		m.assertAll(t)
	})

	t.Run("no targets rejected", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)

		_, err := service.Assign(context.Background(), questID, nil, false)

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
		m.assertAll(t)
	})
}

func TestQuestService_Submit(t *testing.T) {
	questID := uuid.New()
	memberID := uuid.New()
	memberQuestID := uuid.New()
	submission := map[string]interface{}{"flag": "HTB{proof}"}

	tests := []struct {
		name          string
		quest         *model.Quest
		memberQuest   *model.MemberQuest
		mockSetup     func(m *questServiceMocks)
		expectedError error
	}{
		{
			name:  "submission before the deadline goes in_progress",
			quest: &model.Quest{ID: questID, Deadline: timePtr(time.Now().Add(time.Hour))},
			memberQuest: &model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusAssigned,
			},
			mockSetup: func(m *questServiceMocks) {
				m.repo.On("UpdateSubmission", mock.Anything, memberQuestID, mock.Anything,
					model.StatusInProgress, false, mock.Anything).Return(nil)
			},
		},
		{
			name:  "submission after the deadline is marked late",
			quest: &model.Quest{ID: questID, Deadline: timePtr(time.Now().Add(-time.Hour))},
			memberQuest: &model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusAssigned,
			},
			mockSetup: func(m *questServiceMocks) {
				m.repo.On("UpdateSubmission", mock.Anything, memberQuestID, mock.Anything,
					model.StatusLate, true, mock.Anything).Return(nil)
			},
		},
		{
			name:  "no deadline never goes late",
			quest: &model.Quest{ID: questID},
			memberQuest: &model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusInProgress,
			},
			mockSetup: func(m *questServiceMocks) {
				m.repo.On("UpdateSubmission", mock.Anything, memberQuestID, mock.Anything,
					model.StatusInProgress, false, mock.Anything).Return(nil)
			},
		},
		{
			name:  "completed assignment cannot be resubmitted",
			quest: &model.Quest{ID: questID},
			memberQuest: &model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusCompleted,
			},
			mockSetup:     func(m *questServiceMocks) {},
			expectedError: ErrNotSubmittable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := newQuestService()

			m.repo.On("GetMemberQuest", mock.Anything, questID, memberID).Return(tt.memberQuest, nil)
			m.repo.On("GetQuestByID", mock.Anything, questID).Return(tt.quest, nil)
			tt.mockSetup(m)

			err := service.Submit(context.Background(), questID, memberID, submission)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			m.assertAll(t)
		})
	}
}

func TestQuestService_Submit_NotAssigned(t *testing.T) {
	service, m := newQuestService()
	questID := uuid.New()
	memberID := uuid.New()

	m.repo.On("GetMemberQuest", mock.Anything, questID, memberID).
		Return(nil, repository.ErrNotFound)

	err := service.Submit(context.Background(), questID, memberID, nil)

	assert.ErrorIs(t, err, ErrAssignmentNotFound)
	m.assertAll(t)
}

func TestQuestService_Validate(t *testing.T) {
	questID := uuid.New()
	memberID := uuid.New()
	memberQuestID := uuid.New()
	validatorID := uuid.New()

	quest := &model.Quest{
		ID:                questID,
		Title:             "Pwn the insane box",
		PointsReward:      100,
		PenaltyPercentage: 20,
		RecurrenceType:    model.RecurrenceNone,
	}

	t.Run("approval credits the reward exactly once", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetMemberQuestByID", mock.Anything, memberQuestID).
			Return(&model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusInProgress,
			}, nil)
		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.repo.On("CompleteMemberQuest", mock.Anything, memberQuestID, validatorID, 100,
			mock.MatchedBy(func(tx *model.PointsTransaction) bool {
				return tx != nil && tx.MemberID == memberID && tx.Amount == 100 &&
					tx.Source == model.SourceQuestCompletion
			})).Return(nil)
		m.ranks.On("UpdateMemberRank", mock.Anything, memberID).Return(nil)
		m.notifier.On("Notify", mock.Anything, memberID, model.NotifyQuestValidated,
			mock.Anything, mock.Anything, mock.Anything).Return()

		err := service.Validate(context.Background(), memberQuestID, true, validatorID, "")

		assert.NoError(t, err)
		m.assertAll(t)
	})

	t.Run("late approval applies the penalty", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetMemberQuestByID", mock.Anything, memberQuestID).
			Return(&model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusLate, WasLate: true,
			}, nil)
		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.repo.On("CompleteMemberQuest", mock.Anything, memberQuestID, validatorID, 80,
			mock.MatchedBy(func(tx *model.PointsTransaction) bool {
				return tx != nil && tx.Amount == 80
			})).Return(nil)
		m.ranks.On("UpdateMemberRank", mock.Anything, memberID).Return(nil)
		m.notifier.On("Notify", mock.Anything, memberID, model.NotifyQuestValidated,
			mock.Anything, mock.Anything, mock.Anything).Return()

		err := service.Validate(context.Background(), memberQuestID, true, validatorID, "")

		assert.NoError(t, err)
		m.assertAll(t)
	})

	t.Run("already settled assignment credits nothing", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetMemberQuestByID", mock.Anything, memberQuestID).
			Return(&model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusCompleted,
			}, nil)

		err := service.Validate(context.Background(), memberQuestID, true, validatorID, "")

		assert.ErrorIs(t, err, ErrAlreadyValidated)
		m.repo.AssertNotCalled(t, "CompleteMemberQuest",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.assertAll(t)
	})

	t.Run("concurrent validation loses at the repository guard", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetMemberQuestByID", mock.Anything, memberQuestID).
			Return(&model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusInProgress,
			}, nil)
		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.repo.On("CompleteMemberQuest", mock.Anything, memberQuestID, validatorID, 100, mock.Anything).
			Return(repository.ErrAlreadyValidated)

		err := service.Validate(context.Background(), memberQuestID, true, validatorID, "")

		assert.ErrorIs(t, err, ErrAlreadyValidated)
		m.assertAll(t)
	})

	t.Run("rejection records feedback and credits nothing", func(t *testing.T) {
		service, m := newQuestService()

		m.repo.On("GetMemberQuestByID", mock.Anything, memberQuestID).
			Return(&model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusInProgress,
			}, nil)
		m.repo.On("GetQuestByID", mock.Anything, questID).Return(quest, nil)
		m.repo.On("FailMemberQuest", mock.Anything, memberQuestID, validatorID, "flag is wrong").
			Return(nil)
		m.notifier.On("Notify", mock.Anything, memberID, model.NotifyQuestRejected,
			mock.Anything, "flag is wrong", mock.Anything).Return()

		err := service.Validate(context.Background(), memberQuestID, false, validatorID, "flag is wrong")

		assert.NoError(t, err)
		m.repo.AssertNotCalled(t, "CompleteMemberQuest",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.assertAll(t)
	})

	t.Run("recurring quest marks the period complete", func(t *testing.T) {
		service, m := newQuestService()

		recurring := &model.Quest{
			ID:             questID,
			Title:          "Daily login streak",
			PointsReward:   10,
			RecurrenceType: model.RecurrenceDaily,
		}

		m.repo.On("GetMemberQuestByID", mock.Anything, memberQuestID).
			Return(&model.MemberQuest{
				ID: memberQuestID, QuestID: questID, MemberID: memberID,
				Status: model.StatusInProgress,
			}, nil)
		m.repo.On("GetQuestByID", mock.Anything, questID).Return(recurring, nil)
		m.repo.On("CompleteMemberQuest", mock.Anything, memberQuestID, validatorID, 10, mock.Anything).
			Return(nil)
		m.progress.On("CompleteProgress", mock.Anything, recurring, memberID, 10).Return(nil)
		m.ranks.On("UpdateMemberRank", mock.Anything, memberID).Return(nil)
		m.notifier.On("Notify", mock.Anything, memberID, model.NotifyQuestValidated,
			mock.Anything, mock.Anything, mock.Anything).Return()

		err := service.Validate(context.Background(), memberQuestID, true, validatorID, "")

		assert.NoError(t, err)
		m.assertAll(t)
	})
}

func TestQuestService_CanReplay(t *testing.T) {
	questID := uuid.New()
	memberID := uuid.New()

	tests := []struct {
		name      string
		completed bool
		want      bool
	}{
		{name: "never completed is replayable", completed: false, want: true},
		{name: "completed once is locked", completed: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, m := newQuestService()
			m.repo.On("HasCompleted", mock.Anything, questID, memberID).Return(tt.completed, nil)

			got, err := service.CanReplay(context.Background(), questID, memberID)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			m.assertAll(t)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
