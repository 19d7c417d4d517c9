package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrQuestNotFound      = errors.New("quest not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrDuelNotFound       = errors.New("duel not found")

	ErrNotificationNotFound = errors.New("notification not found")

	ErrInsufficientFunds = errors.New("insufficient points balance")

	// Benign conflict conditions. Callers treat these as no-ops, not
	// failures, but they stay distinguishable from success-with-effect.
	ErrAlreadyValidated = errors.New("assignment already validated")
	ErrNotSubmittable   = errors.New("assignment is no longer open for submission")
	ErrDuelNotPending   = errors.New("duel is not awaiting a response")
	ErrDuelNotActive    = errors.New("duel is not active")

	ErrSelfChallenge  = errors.New("cannot challenge yourself")
	ErrNotParticipant = errors.New("member is not part of this duel")
	ErrHTBNotLinked   = errors.New("member has no linked HTB profile")
)

// ValidationError carries field-level detail for malformed input, rejected
// before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Service struct {
	*LedgerService
	*QuestService
	*DuelService
	*RankService
	*RecurrenceService
	*NotificationService
	*IdentityService
}

func NewService(
	ledger *LedgerService,
	quests *QuestService,
	duels *DuelService,
	ranks *RankService,
	recurrence *RecurrenceService,
	notifications *NotificationService,
	identity *IdentityService,
) *Service {
	return &Service{
		LedgerService:       ledger,
		QuestService:        quests,
		DuelService:         duels,
		RankService:         ranks,
		RecurrenceService:   recurrence,
		NotificationService: notifications,
		IdentityService:     identity,
	}
}

type LedgerRepository interface {
	RecordTransaction(ctx context.Context, t *model.PointsTransaction, allowNegative bool) error
	GetBalance(ctx context.Context, memberID uuid.UUID) (int, error)
	GetHistory(ctx context.Context, memberID uuid.UUID, limit int) ([]*model.PointsTransaction, error)
	GetPointsRule(ctx context.Context, ruleType string) (*model.PointsRule, error)
}

type QuestRepository interface {
	CreateQuest(ctx context.Context, q *model.Quest) error
	GetQuestByID(ctx context.Context, questID uuid.UUID) (*model.Quest, error)
	ListQuests(ctx context.Context, activeOnly bool) ([]*model.Quest, error)
	ListRecurringQuests(ctx context.Context) ([]*model.Quest, error)
	GetCompletedMemberIDs(ctx context.Context, questID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error)
	UpsertAssignments(ctx context.Context, questID uuid.UUID, memberIDs []uuid.UUID, assignedAt time.Time) (int, error)
	GetMemberQuest(ctx context.Context, questID, memberID uuid.UUID) (*model.MemberQuest, error)
	GetMemberQuestByID(ctx context.Context, memberQuestID uuid.UUID) (*model.MemberQuest, error)
	UpdateSubmission(ctx context.Context, memberQuestID uuid.UUID, data json.RawMessage, status model.MemberQuestStatus, wasLate bool, submittedAt time.Time) error
	CompleteMemberQuest(ctx context.Context, memberQuestID, validatorID uuid.UUID, points int, credit *model.PointsTransaction) error
	FailMemberQuest(ctx context.Context, memberQuestID, validatorID uuid.UUID, feedback string) error
	HasCompleted(ctx context.Context, questID, memberID uuid.UUID) (bool, error)
	QuestsForMember(ctx context.Context, memberID uuid.UUID, status *model.MemberQuestStatus) ([]*model.MemberQuestView, error)
	ListAssignedMemberIDs(ctx context.Context, questID uuid.UUID) ([]uuid.UUID, error)
}

type DuelRepository interface {
	CreateDuel(ctx context.Context, d *model.Duel) error
	GetDuelByID(ctx context.Context, duelID uuid.UUID) (*model.Duel, error)
	ActivateDuel(ctx context.Context, duelID uuid.UUID, challengedStake int, endsAt time.Time, debits []*model.PointsTransaction) error
	CancelDuel(ctx context.Context, duelID uuid.UUID) error
	CompleteDuel(ctx context.Context, duelID, winnerID uuid.UUID, payout *model.PointsTransaction) error
	ListDuelsForMember(ctx context.Context, memberID uuid.UUID, status *model.DuelStatus) ([]*model.Duel, error)
}

type RankRepository interface {
	ListRanks(ctx context.Context) ([]*model.Rank, error)
}

type MemberRepository interface {
	GetMemberByID(ctx context.Context, memberID uuid.UUID) (*model.Member, error)
	ListMemberIDs(ctx context.Context) ([]uuid.UUID, error)
	SetMemberRank(ctx context.Context, memberID, rankID uuid.UUID) error
	GetLeaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error)
}

type ProgressRepository interface {
	GetQuestProgress(ctx context.Context, questID, memberID uuid.UUID, periodStart, periodEnd time.Time) (*model.QuestProgress, error)
	CreateQuestProgress(ctx context.Context, p *model.QuestProgress) (bool, error)
	CompleteQuestProgress(ctx context.Context, progressID uuid.UUID, pointsAwarded int) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, memberID uuid.UUID, limit int, unreadOnly bool) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, memberID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, memberID uuid.UUID) error
	CountUnreadNotifications(ctx context.Context, memberID uuid.UUID) (int, error)
	ListUndispatched(ctx context.Context, limit int) ([]*model.Notification, error)
	MarkDispatched(ctx context.Context, notificationIDs []uuid.UUID) error
}

// IdentityProvider is the external identity collaborator. The engine only
// needs these three facts about a member.
type IdentityProvider interface {
	MemberExists(ctx context.Context, memberID uuid.UUID) (bool, error)
	IsLinkedToHTB(ctx context.Context, memberID uuid.UUID) (bool, error)
	IsAdmin(ctx context.Context, memberID uuid.UUID) (bool, error)
}

// Notifier records a notification for later delivery. Implementations are
// fire-and-forget: a failure is logged, never propagated to the caller.
type Notifier interface {
	Notify(ctx context.Context, memberID uuid.UUID, t model.NotificationType, title, message string, data map[string]interface{})
}

// RankUpdater recomputes a member's rank. Safe to call after any
// balance-changing operation; a failure leaves the rank stale but
// retryable, never the balance wrong.
type RankUpdater interface {
	UpdateMemberRank(ctx context.Context, memberID uuid.UUID) error
}

// ProgressTracker marks the current recurrence period of a quest done for a
// member.
type ProgressTracker interface {
	CompleteProgress(ctx context.Context, q *model.Quest, memberID uuid.UUID, points int) error
}

// Emitter is the delivery transport the dispatcher hands outbox rows to.
type Emitter interface {
	Emit(ctx context.Context, n *model.Notification) error
}
