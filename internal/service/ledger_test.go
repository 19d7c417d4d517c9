package service

import (
	"context"
	"testing"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/repository"
	"htb_guild_backend/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLedgerService_Credit(t *testing.T) {
	memberID := uuid.New()

	tests := []struct {
		name          string
		amount        int
		source        model.PointsSource
		mockSetup     func(repo *mocks.MockLedgerRepository)
		expectedError error
	}{
		{
			name:   "successful credit",
			amount: 25,
			source: model.SourceQuestCompletion,
			mockSetup: func(repo *mocks.MockLedgerRepository) {
				repo.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(tx *model.PointsTransaction) bool {
					return tx.MemberID == memberID &&
						tx.Amount == 25 &&
						tx.Source == model.SourceQuestCompletion &&
						tx.ID != uuid.Nil
				}), false).Return(nil)
			},
		},
		{
			name:          "zero amount rejected",
			amount:        0,
			source:        model.SourceQuestCompletion,
			mockSetup:     func(repo *mocks.MockLedgerRepository) {},
			expectedError: &ValidationError{Field: "amount", Message: "must be positive"},
		},
		{
			name:          "negative amount rejected",
			amount:        -5,
			source:        model.SourceQuestCompletion,
			mockSetup:     func(repo *mocks.MockLedgerRepository) {},
			expectedError: &ValidationError{Field: "amount", Message: "must be positive"},
		},
		{
			name:          "unknown source rejected",
			amount:        10,
			source:        model.PointsSource("loot_box"),
			mockSetup:     func(repo *mocks.MockLedgerRepository) {},
			expectedError: &ValidationError{Field: "source", Message: `unknown points source "loot_box"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockLedgerRepository{}
			tt.mockSetup(repo)

			service := NewLedgerService(repo)

			err := service.Credit(context.Background(), memberID, tt.amount, tt.source, "test credit")

			if tt.expectedError != nil {
				assert.EqualError(t, err, tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestLedgerService_Debit(t *testing.T) {
	memberID := uuid.New()

	t.Run("debit records a negative amount", func(t *testing.T) {
		repo := &mocks.MockLedgerRepository{}
		repo.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(tx *model.PointsTransaction) bool {
			return tx.Amount == -30 && tx.Source == model.SourceDuelParticipation
		}), false).Return(nil)

		service := NewLedgerService(repo)

		err := service.Debit(context.Background(), memberID, 30, model.SourceDuelParticipation, "duel stake")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("insufficient balance surfaces as service error", func(t *testing.T) {
		repo := &mocks.MockLedgerRepository{}
		repo.On("RecordTransaction", mock.Anything, mock.Anything, false).
			Return(repository.ErrInsufficientFunds)

		service := NewLedgerService(repo)

		err := service.Debit(context.Background(), memberID, 30, model.SourceDuelParticipation, "duel stake")

		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})
}

func TestLedgerService_Adjust(t *testing.T) {
	memberID := uuid.New()

	t.Run("negative adjustment may go below zero", func(t *testing.T) {
		repo := &mocks.MockLedgerRepository{}
		repo.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(tx *model.PointsTransaction) bool {
			return tx.Amount == -200 && tx.Source == model.SourceManualAdjustment
		}), true).Return(nil)

		service := NewLedgerService(repo)

		err := service.Adjust(context.Background(), memberID, -200, "penalty for cheating")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("empty description gets a default", func(t *testing.T) {
		repo := &mocks.MockLedgerRepository{}
		repo.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(tx *model.PointsTransaction) bool {
			return tx.Description == "Admin adjustment"
		}), true).Return(nil)

		service := NewLedgerService(repo)

		err := service.Adjust(context.Background(), memberID, 50, "")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("zero adjustment rejected", func(t *testing.T) {
		repo := &mocks.MockLedgerRepository{}
		service := NewLedgerService(repo)

		err := service.Adjust(context.Background(), memberID, 0, "noop")

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestLedgerService_GetHistory(t *testing.T) {
	memberID := uuid.New()

	repo := &mocks.MockLedgerRepository{}
	repo.On("GetHistory", mock.Anything, memberID, defaultHistoryLimit).
		Return([]*model.PointsTransaction{}, nil)

	service := NewLedgerService(repo)

	history, err := service.GetHistory(context.Background(), memberID, 0)

	assert.NoError(t, err)
	assert.Empty(t, history)
	repo.AssertExpectations(t)
}

func TestLedgerService_AwardByRule(t *testing.T) {
	memberID := uuid.New()

	tests := []struct {
		name           string
		mockSetup      func(repo *mocks.MockLedgerRepository)
		expectedPoints int
	}{
		{
			name: "configured rule credits its value",
			mockSetup: func(repo *mocks.MockLedgerRepository) {
				repo.On("GetPointsRule", mock.Anything, "htb_machine").
					Return(&model.PointsRule{RuleType: "htb_machine", PointsValue: 20, Active: true}, nil)
				repo.On("RecordTransaction", mock.Anything, mock.MatchedBy(func(tx *model.PointsTransaction) bool {
					return tx.Amount == 20 && tx.Source == model.SourceHTBMachine
				}), false).Return(nil)
			},
			expectedPoints: 20,
		},
		{
			name: "unknown rule awards nothing",
			mockSetup: func(repo *mocks.MockLedgerRepository) {
				repo.On("GetPointsRule", mock.Anything, "htb_machine").
					Return(nil, repository.ErrNotFound)
			},
			expectedPoints: 0,
		},
		{
			name: "zero-value rule awards nothing",
			mockSetup: func(repo *mocks.MockLedgerRepository) {
				repo.On("GetPointsRule", mock.Anything, "htb_machine").
					Return(&model.PointsRule{RuleType: "htb_machine", PointsValue: 0}, nil)
			},
			expectedPoints: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockLedgerRepository{}
			tt.mockSetup(repo)

			service := NewLedgerService(repo)

			points, err := service.AwardByRule(context.Background(), memberID, "htb_machine", "Owned machine")

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedPoints, points)
			repo.AssertExpectations(t)
		})
	}
}
