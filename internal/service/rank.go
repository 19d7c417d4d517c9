package service

import (
	"context"
	"fmt"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLeaderboardSize = 100

type RankService struct {
	ranks   RankRepository
	members MemberRepository
	ledger  LedgerRepository
}

func NewRankService(ranks RankRepository, members MemberRepository, ledger LedgerRepository) *RankService {
	return &RankService{
		ranks:   ranks,
		members: members,
		ledger:  ledger,
	}
}

// EligibleRank picks the highest rank whose threshold the points meet.
// Ties on points_required break deterministically: lowest order_index, then
// lexicographically smallest id.
func EligibleRank(ranks []*model.Rank, points int) *model.Rank {
	var best *model.Rank
	for _, r := range ranks {
		if r.PointsRequired > points {
			continue
		}
		if best == nil ||
			r.PointsRequired > best.PointsRequired ||
			(r.PointsRequired == best.PointsRequired && r.OrderIndex < best.OrderIndex) ||
			(r.PointsRequired == best.PointsRequired && r.OrderIndex == best.OrderIndex && r.ID.String() < best.ID.String()) {
			best = r
		}
	}
	return best
}

// NextRank returns the lowest rank still above the points, for progress
// display. Nil when the member already holds the top rank.
func NextRank(ranks []*model.Rank, points int) *model.Rank {
	var next *model.Rank
	for _, r := range ranks {
		if r.PointsRequired <= points {
			continue
		}
		if next == nil || r.PointsRequired < next.PointsRequired {
			next = r
		}
	}
	return next
}

// UpdateMemberRank recomputes the member's rank from their balance and
// writes only on change. Idempotent: calling it again with an unchanged
// balance has no effect, so it is safe after every balance mutation and
// retryable when a previous call failed.
func (s *RankService) UpdateMemberRank(ctx context.Context, memberID uuid.UUID) error {
	balance, err := s.ledger.GetBalance(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to get balance: %w", err)
	}

	ranks, err := s.ranks.ListRanks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ranks: %w", err)
	}

	eligible := EligibleRank(ranks, balance)
	if eligible == nil {
		return nil
	}

	member, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}

	if member.CurrentRankID != nil && *member.CurrentRankID == eligible.ID {
		return nil
	}

	if err := s.members.SetMemberRank(ctx, memberID, eligible.ID); err != nil {
		return fmt.Errorf("failed to set member rank: %w", err)
	}

	logger.Logger().Info("member rank updated",
		zap.String("member_id", memberID.String()),
		zap.String("rank", eligible.DisplayName))

	return nil
}

func (s *RankService) ListRanks(ctx context.Context) ([]*model.Rank, error) {
	ranks, err := s.ranks.ListRanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranks: %w", err)
	}
	return ranks, nil
}

func (s *RankService) GetLeaderboard(ctx context.Context, limit int) ([]*model.LeaderboardEntry, error) {
	if limit <= 0 || limit > defaultLeaderboardSize {
		limit = defaultLeaderboardSize
	}
	entries, err := s.members.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return entries, nil
}
