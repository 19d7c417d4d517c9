package service

import (
	"context"
	"testing"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testRanks() []*model.Rank {
	return []*model.Rank{
		{ID: uuid.New(), Name: "noob", DisplayName: "Noob", PointsRequired: 0, OrderIndex: 1},
		{ID: uuid.New(), Name: "script_kiddie", DisplayName: "Script Kiddie", PointsRequired: 100, OrderIndex: 2},
		{ID: uuid.New(), Name: "hacker", DisplayName: "Hacker", PointsRequired: 250, OrderIndex: 3},
		{ID: uuid.New(), Name: "elite", DisplayName: "Elite", PointsRequired: 1000, OrderIndex: 4},
	}
}

func TestEligibleRank(t *testing.T) {
	ranks := testRanks()

	tests := []struct {
		name   string
		points int
		want   *model.Rank
	}{
		{name: "zero points gets the base rank", points: 0, want: ranks[0]},
		{name: "just below a threshold keeps the lower rank", points: 99, want: ranks[0]},
		{name: "exactly on a threshold unlocks it", points: 100, want: ranks[1]},
		{name: "between thresholds", points: 600, want: ranks[2]},
		{name: "above the top threshold", points: 5000, want: ranks[3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EligibleRank(ranks, tt.points)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEligibleRank_NoEligible(t *testing.T) {
	ranks := []*model.Rank{
		{ID: uuid.New(), PointsRequired: 100, OrderIndex: 1},
	}

	assert.Nil(t, EligibleRank(ranks, 50))
	assert.Nil(t, EligibleRank(nil, 50))
}

func TestEligibleRank_Deterministic(t *testing.T) {
	a := &model.Rank{ID: uuid.New(), PointsRequired: 100, OrderIndex: 2}
	b := &model.Rank{ID: uuid.New(), PointsRequired: 100, OrderIndex: 1}

	// Same threshold: the lower order index wins regardless of slice order.
	assert.Equal(t, b, EligibleRank([]*model.Rank{a, b}, 150))
	assert.Equal(t, b, EligibleRank([]*model.Rank{b, a}, 150))
}

func TestNextRank(t *testing.T) {
	ranks := testRanks()

	assert.Equal(t, ranks[1], NextRank(ranks, 0))
	assert.Equal(t, ranks[2], NextRank(ranks, 100))
	assert.Equal(t, ranks[3], NextRank(ranks, 600))
	assert.Nil(t, NextRank(ranks, 1000))
}

func TestRankService_UpdateMemberRank(t *testing.T) {
	memberID := uuid.New()
	ranks := testRanks()

	tests := []struct {
		name      string
		mockSetup func(rankRepo *mocks.MockRankRepository, memberRepo *mocks.MockMemberRepository, ledgerRepo *mocks.MockLedgerRepository)
	}{
		{
			name: "rank change is written",
			mockSetup: func(rankRepo *mocks.MockRankRepository, memberRepo *mocks.MockMemberRepository, ledgerRepo *mocks.MockLedgerRepository) {
				ledgerRepo.On("GetBalance", mock.Anything, memberID).Return(120, nil)
				rankRepo.On("ListRanks", mock.Anything).Return(ranks, nil)
				memberRepo.On("GetMemberByID", mock.Anything, memberID).
					Return(&model.Member{ID: memberID, CurrentRankID: &ranks[0].ID}, nil)
				memberRepo.On("SetMemberRank", mock.Anything, memberID, ranks[1].ID).Return(nil)
			},
		},
		{
			name: "unchanged rank is not rewritten",
			mockSetup: func(rankRepo *mocks.MockRankRepository, memberRepo *mocks.MockMemberRepository, ledgerRepo *mocks.MockLedgerRepository) {
				ledgerRepo.On("GetBalance", mock.Anything, memberID).Return(120, nil)
				rankRepo.On("ListRanks", mock.Anything).Return(ranks, nil)
				memberRepo.On("GetMemberByID", mock.Anything, memberID).
					Return(&model.Member{ID: memberID, CurrentRankID: &ranks[1].ID}, nil)
			},
		},
		{
			name: "member without a rank gets one",
			mockSetup: func(rankRepo *mocks.MockRankRepository, memberRepo *mocks.MockMemberRepository, ledgerRepo *mocks.MockLedgerRepository) {
				ledgerRepo.On("GetBalance", mock.Anything, memberID).Return(0, nil)
				rankRepo.On("ListRanks", mock.Anything).Return(ranks, nil)
				memberRepo.On("GetMemberByID", mock.Anything, memberID).
					Return(&model.Member{ID: memberID}, nil)
				memberRepo.On("SetMemberRank", mock.Anything, memberID, ranks[0].ID).Return(nil)
			},
		},
		{
			name: "no eligible rank leaves the member untouched",
			mockSetup: func(rankRepo *mocks.MockRankRepository, memberRepo *mocks.MockMemberRepository, ledgerRepo *mocks.MockLedgerRepository) {
				ledgerRepo.On("GetBalance", mock.Anything, memberID).Return(10, nil)
				rankRepo.On("ListRanks", mock.Anything).
					Return([]*model.Rank{{ID: uuid.New(), PointsRequired: 100}}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rankRepo := &mocks.MockRankRepository{}
			memberRepo := &mocks.MockMemberRepository{}
			ledgerRepo := &mocks.MockLedgerRepository{}
			tt.mockSetup(rankRepo, memberRepo, ledgerRepo)

			service := NewRankService(rankRepo, memberRepo, ledgerRepo)

			err := service.UpdateMemberRank(context.Background(), memberID)

			assert.NoError(t, err)
			rankRepo.AssertExpectations(t)
			memberRepo.AssertExpectations(t)
			ledgerRepo.AssertExpectations(t)
		})
	}
}
