// Package mocks provides testify mocks for the repository and collaborator
// interfaces declared in the service package.
package mocks

import (
	"context"
	"time"

	"htb_guild_backend/internal/model"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) RecordTransaction(ctx context.Context, t *model.PointsTransaction, allowNegative bool) error {
	args := m.Called(ctx, t, allowNegative)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, memberID uuid.UUID) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerRepository) GetHistory(ctx context.Context, memberID uuid.UUID, limit int) ([]*model.PointsTransaction, error) {
	args := m.Called(ctx, memberID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PointsTransaction), args.Error(1)
}

func (m *MockLedgerRepository) GetPointsRule(ctx context.Context, ruleType string) (*model.PointsRule, error) {
	args := m.Called(ctx, ruleType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PointsRule), args.Error(1)
}

type MockQuestRepository struct {
	mock.Mock
}

func (m *MockQuestRepository) CreateQuest(ctx context.Context, q *model.Quest) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQuestRepository) GetQuestByID(ctx context.Context, questID uuid.UUID) (*model.Quest, error) {
	args := m.Called(ctx, questID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Quest), args.Error(1)
}

func (m *MockQuestRepository) ListQuests(ctx context.Context, activeOnly bool) ([]*model.Quest, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Quest), args.Error(1)
}

func (m *MockQuestRepository) ListRecurringQuests(ctx context.Context) ([]*model.Quest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Quest), args.Error(1)
}

func (m *MockQuestRepository) GetCompletedMemberIDs(ctx context.Context, questID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, questID, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockQuestRepository) UpsertAssignments(ctx context.Context, questID uuid.UUID, memberIDs []uuid.UUID, assignedAt time.Time) (int, error) {
	args := m.Called(ctx, questID, memberIDs, assignedAt)
	return args.Int(0), args.Error(1)
}

func (m *MockQuestRepository) GetMemberQuest(ctx context.Context, questID, memberID uuid.UUID) (*model.MemberQuest, error) {
	args := m.Called(ctx, questID, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MemberQuest), args.Error(1)
}

func (m *MockQuestRepository) GetMemberQuestByID(ctx context.Context, memberQuestID uuid.UUID) (*model.MemberQuest, error) {
	args := m.Called(ctx, memberQuestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MemberQuest), args.Error(1)
}

func (m *MockQuestRepository) UpdateSubmission(ctx context.Context, memberQuestID uuid.UUID, data json.RawMessage, status model.MemberQuestStatus, wasLate bool, submittedAt time.Time) error {
	args := m.Called(ctx, memberQuestID, data, status, wasLate, submittedAt)
	return args.Error(0)
}

func (m *MockQuestRepository) CompleteMemberQuest(ctx context.Context, memberQuestID, validatorID uuid.UUID, points int, credit *model.PointsTransaction) error {
	args := m.Called(ctx, memberQuestID, validatorID, points, credit)
	return args.Error(0)
}

func (m *MockQuestRepository) FailMemberQuest(ctx context.Context, memberQuestID, validatorID uuid.UUID, feedback string) error {
	args := m.Called(ctx, memberQuestID, validatorID, feedback)
	return args.Error(0)
}

func (m *MockQuestRepository) HasCompleted(ctx context.Context, questID, memberID uuid.UUID) (bool, error) {
	args := m.Called(ctx, questID, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuestRepository) QuestsForMember(ctx context.Context, memberID uuid.UUID, status *model.MemberQuestStatus) ([]*model.MemberQuestView, error) {
	args := m.Called(ctx, memberID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MemberQuestView), args.Error(1)
}

func (m *MockQuestRepository) ListAssignedMemberIDs(ctx context.Context, questID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, questID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockDuelRepository struct {
	mock.Mock
}

func (m *MockDuelRepository) CreateDuel(ctx context.Context, d *model.Duel) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDuelRepository) GetDuelByID(ctx context.Context, duelID uuid.UUID) (*model.Duel, error) {
	args := m.Called(ctx, duelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Duel), args.Error(1)
}

func (m *MockDuelRepository) ActivateDuel(ctx context.Context, duelID uuid.UUID, challengedStake int, endsAt time.Time, debits []*model.PointsTransaction) error {
	args := m.Called(ctx, duelID, challengedStake, endsAt, debits)
	return args.Error(0)
}

func (m *MockDuelRepository) CancelDuel(ctx context.Context, duelID uuid.UUID) error {
	args := m.Called(ctx, duelID)
	return args.Error(0)
}

func (m *MockDuelRepository) CompleteDuel(ctx context.Context, duelID, winnerID uuid.UUID, payout *model.PointsTransaction) error {
	args := m.Called(ctx, duelID, winnerID, payout)
	return args.Error(0)
}

func (m *MockDuelRepository) ListDuelsForMember(ctx context.Context, memberID uuid.UUID, status *model.DuelStatus) ([]*model.Duel, error) {
	args := m.Called(ctx, memberID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Duel), args.Error(1)
}

type MockRankRepository struct {
	mock.Mock
}

func (m *MockRankRepository) ListRanks(ctx context.Context) ([]*model.Rank, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Rank), args.Error(1)
}

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) GetMemberByID(ctx context.Context, memberID uuid.UUID) (*model.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Member), args.Error(1)
}

func (m *MockMemberRepository) ListMemberIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockMemberRepository) SetMemberRank(ctx context.Context, memberID, rankID uuid.UUID) error {
	args := m.Called(ctx, memberID, rankID)
	return args.Error(0)
}

func (m *MockMemberRepository) GetLeaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LeaderboardEntry), args.Error(1)
}

type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) GetQuestProgress(ctx context.Context, questID, memberID uuid.UUID, periodStart, periodEnd time.Time) (*model.QuestProgress, error) {
	args := m.Called(ctx, questID, memberID, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestProgress), args.Error(1)
}

func (m *MockProgressRepository) CreateQuestProgress(ctx context.Context, p *model.QuestProgress) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockProgressRepository) CompleteQuestProgress(ctx context.Context, progressID uuid.UUID, pointsAwarded int) error {
	args := m.Called(ctx, progressID, pointsAwarded)
	return args.Error(0)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListNotifications(ctx context.Context, memberID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error) {
	args := m.Called(ctx, memberID, limit, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkNotificationRead(ctx context.Context, notificationID, memberID uuid.UUID) error {
	args := m.Called(ctx, notificationID, memberID)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllNotificationsRead(ctx context.Context, memberID uuid.UUID) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

func (m *MockNotificationRepository) CountUnreadNotifications(ctx context.Context, memberID uuid.UUID) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationRepository) ListUndispatched(ctx context.Context, limit int) ([]*model.Notification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkDispatched(ctx context.Context, notificationIDs []uuid.UUID) error {
	args := m.Called(ctx, notificationIDs)
	return args.Error(0)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) MemberExists(ctx context.Context, memberID uuid.UUID) (bool, error) {
	args := m.Called(ctx, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityProvider) IsLinkedToHTB(ctx context.Context, memberID uuid.UUID) (bool, error) {
	args := m.Called(ctx, memberID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityProvider) IsAdmin(ctx context.Context, memberID uuid.UUID) (bool, error) {
	args := m.Called(ctx, memberID)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, memberID uuid.UUID, t model.NotificationType, title, message string, data map[string]interface{}) {
	m.Called(ctx, memberID, t, title, message, data)
}

type MockRankUpdater struct {
	mock.Mock
}

func (m *MockRankUpdater) UpdateMemberRank(ctx context.Context, memberID uuid.UUID) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

type MockProgressTracker struct {
	mock.Mock
}

func (m *MockProgressTracker) CompleteProgress(ctx context.Context, q *model.Quest, memberID uuid.UUID, points int) error {
	args := m.Called(ctx, q, memberID, points)
	return args.Error(0)
}

type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
