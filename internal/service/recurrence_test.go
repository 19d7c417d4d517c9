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

func TestCurrentPeriod(t *testing.T) {
	date := func(y int, m time.Month, d, hh, mm, ss int) time.Time {
		return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
	}

	tests := []struct {
		name      string
		rtype     model.RecurrenceType
		resetDay  int
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "daily covers midnight to end of day",
			rtype:     model.RecurrenceDaily,
			now:       date(2024, time.March, 10, 15, 4, 5),
			wantStart: date(2024, time.March, 10, 0, 0, 0),
			wantEnd:   date(2024, time.March, 10, 23, 59, 59),
		},
		{
			name:      "weekly monday reset from a wednesday",
			rtype:     model.RecurrenceWeekly,
			resetDay:  1,
			now:       date(2024, time.March, 13, 12, 0, 0),
			wantStart: date(2024, time.March, 11, 0, 0, 0),
			wantEnd:   date(2024, time.March, 17, 23, 59, 59),
		},
		{
			name:      "weekly monday reset on the reset day itself",
			rtype:     model.RecurrenceWeekly,
			resetDay:  1,
			now:       date(2024, time.March, 11, 0, 0, 1),
			wantStart: date(2024, time.March, 11, 0, 0, 0),
			wantEnd:   date(2024, time.March, 17, 23, 59, 59),
		},
		{
			name:      "weekly sunday reset from a wednesday",
			rtype:     model.RecurrenceWeekly,
			resetDay:  7,
			now:       date(2024, time.March, 13, 12, 0, 0),
			wantStart: date(2024, time.March, 10, 0, 0, 0),
			wantEnd:   date(2024, time.March, 16, 23, 59, 59),
		},
		{
			name:      "weekly reset crossing a month boundary",
			rtype:     model.RecurrenceWeekly,
			resetDay:  4,
			now:       date(2024, time.April, 3, 8, 0, 0),
			wantStart: date(2024, time.March, 28, 0, 0, 0),
			wantEnd:   date(2024, time.April, 3, 23, 59, 59),
		},
		{
			name:      "monthly before the reset day uses previous month",
			rtype:     model.RecurrenceMonthly,
			resetDay:  15,
			now:       date(2024, time.March, 10, 12, 0, 0),
			wantStart: date(2024, time.February, 15, 0, 0, 0),
			wantEnd:   date(2024, time.March, 14, 23, 59, 59),
		},
		{
			name:      "monthly on or after the reset day uses current month",
			rtype:     model.RecurrenceMonthly,
			resetDay:  15,
			now:       date(2024, time.March, 20, 12, 0, 0),
			wantStart: date(2024, time.March, 15, 0, 0, 0),
			wantEnd:   date(2024, time.April, 14, 23, 59, 59),
		},
		{
			name:      "monthly first-of-month in a leap february",
			rtype:     model.RecurrenceMonthly,
			resetDay:  1,
			now:       date(2024, time.February, 10, 12, 0, 0),
			wantStart: date(2024, time.February, 1, 0, 0, 0),
			wantEnd:   date(2024, time.February, 29, 23, 59, 59),
		},
		{
			name:      "invalid weekly reset day falls back to monday",
			rtype:     model.RecurrenceWeekly,
			resetDay:  9,
			now:       date(2024, time.March, 13, 12, 0, 0),
			wantStart: date(2024, time.March, 11, 0, 0, 0),
			wantEnd:   date(2024, time.March, 17, 23, 59, 59),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := CurrentPeriod(tt.rtype, tt.resetDay, tt.now)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
			assert.False(t, tt.now.Before(start))
			assert.False(t, tt.now.After(end))
		})
	}
}

func TestCurrentPeriod_None(t *testing.T) {
	start, end := CurrentPeriod(model.RecurrenceNone, 0, time.Now().UTC())

	assert.Equal(t, 2000, start.Year())
	assert.Equal(t, 2100, end.Year())
	assert.False(t, IsExpired(end, time.Now().UTC()))
}

func TestIsExpired(t *testing.T) {
	end := time.Date(2024, time.March, 10, 23, 59, 59, 0, time.UTC)

	assert.False(t, IsExpired(end, end))
	assert.False(t, IsExpired(end, end.Add(-time.Second)))
	assert.True(t, IsExpired(end, end.Add(time.Second)))
}

func TestRecurrenceService_CompleteProgress(t *testing.T) {
	questID := uuid.New()
	memberID := uuid.New()

	tests := []struct {
		name      string
		quest     *model.Quest
		mockSetup func(progress *mocks.MockProgressRepository)
	}{
		{
			name:  "non-recurring quest is a no-op",
			quest: &model.Quest{ID: questID, RecurrenceType: model.RecurrenceNone},
			mockSetup: func(progress *mocks.MockProgressRepository) {
			},
		},
		{
			name:  "open period gets completed",
			quest: &model.Quest{ID: questID, RecurrenceType: model.RecurrenceDaily},
			mockSetup: func(progress *mocks.MockProgressRepository) {
				progressID := uuid.New()
				progress.On("GetQuestProgress", mock.Anything, questID, memberID, mock.Anything, mock.Anything).
					Return(&model.QuestProgress{
						ID:       progressID,
						QuestID:  questID,
						MemberID: memberID,
					}, nil)
				progress.On("CompleteQuestProgress", mock.Anything, progressID, 50).
					Return(nil)
			},
		},
		{
			name:  "already completed period is left alone",
			quest: &model.Quest{ID: questID, RecurrenceType: model.RecurrenceDaily},
			mockSetup: func(progress *mocks.MockProgressRepository) {
				progress.On("GetQuestProgress", mock.Anything, questID, memberID, mock.Anything, mock.Anything).
					Return(&model.QuestProgress{
						ID:        uuid.New(),
						QuestID:   questID,
						MemberID:  memberID,
						Completed: true,
					}, nil)
			},
		},
		{
			name:  "missing period row is created first",
			quest: &model.Quest{ID: questID, RecurrenceType: model.RecurrenceWeekly},
			mockSetup: func(progress *mocks.MockProgressRepository) {
				progress.On("GetQuestProgress", mock.Anything, questID, memberID, mock.Anything, mock.Anything).
					Return(nil, repository.ErrNotFound).Once()
				progress.On("CreateQuestProgress", mock.Anything, mock.MatchedBy(func(p *model.QuestProgress) bool {
					return p.QuestID == questID && p.MemberID == memberID && !p.Completed
				})).Return(true, nil)
				progress.On("CompleteQuestProgress", mock.Anything, mock.Anything, 50).
					Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockQuests := &mocks.MockQuestRepository{}
			mockProgress := &mocks.MockProgressRepository{}
			tt.mockSetup(mockProgress)

			service := NewRecurrenceService(mockQuests, mockProgress)

			err := service.CompleteProgress(context.Background(), tt.quest, memberID, 50)

			assert.NoError(t, err)
			mockProgress.AssertExpectations(t)
		})
	}
}

func TestRecurrenceService_ResetExpiredQuests(t *testing.T) {
	questID := uuid.New()
	doneMember := uuid.New()
	openMember := uuid.New()

	quest := &model.Quest{
		ID:             questID,
		Title:          "Weekly writeup",
		RecurrenceType: model.RecurrenceWeekly,
	}

	mockQuests := &mocks.MockQuestRepository{}
	mockProgress := &mocks.MockProgressRepository{}

	mockQuests.On("ListRecurringQuests", mock.Anything).
		Return([]*model.Quest{quest}, nil)
	mockQuests.On("ListAssignedMemberIDs", mock.Anything, questID).
		Return([]uuid.UUID{doneMember, openMember}, nil)

	mockProgress.On("GetQuestProgress", mock.Anything, questID, doneMember, mock.Anything, mock.Anything).
		Return(&model.QuestProgress{ID: uuid.New(), Completed: true}, nil)
	mockProgress.On("GetQuestProgress", mock.Anything, questID, openMember, mock.Anything, mock.Anything).
		Return(nil, repository.ErrNotFound).Once()
	mockProgress.On("CreateQuestProgress", mock.Anything, mock.MatchedBy(func(p *model.QuestProgress) bool {
		return p.QuestID == questID && p.MemberID == openMember
	})).Return(true, nil)

	service := NewRecurrenceService(mockQuests, mockProgress)

	reset, err := service.ResetExpiredQuests(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, reset)
	mockQuests.AssertExpectations(t)
	mockProgress.AssertExpectations(t)
}
