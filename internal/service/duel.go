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
	maxDuelStake        = 100
	minDuelDuration     = 1
	maxDuelDuration     = 168
	defaultDuelDuration = 48
)

type DuelService struct {
	repo     DuelRepository
	ledger   LedgerRepository
	identity IdentityProvider
	ranks    RankUpdater
	notifier Notifier
}

func NewDuelService(repo DuelRepository, ledger LedgerRepository, identity IdentityProvider, ranks RankUpdater, notifier Notifier) *DuelService {
	return &DuelService{
		repo:     repo,
		ledger:   ledger,
		identity: identity,
		ranks:    ranks,
		notifier: notifier,
	}
}

// Create opens a pending duel. The stake is validated against the
// challenger's balance but not locked yet; locking happens on acceptance so
// a refused challenge has no ledger effect.
func (s *DuelService) Create(ctx context.Context, challengerID, challengedID uuid.UUID, machineID int64, machineName, machineDifficulty string, durationHours, stake int) (*model.Duel, error) {
	if challengedID == challengerID {
		return nil, ErrSelfChallenge
	}
	if machineID == 0 || machineName == "" {
		return nil, &ValidationError{Field: "htb_machine", Message: "machine reference required"}
	}
	if stake < 0 || stake > maxDuelStake {
		return nil, &ValidationError{Field: "stake", Message: "must be between 0 and 100"}
	}
	if durationHours == 0 {
		durationHours = defaultDuelDuration
	}
	if durationHours < minDuelDuration || durationHours > maxDuelDuration {
		return nil, &ValidationError{Field: "duration_hours", Message: "must be between 1 and 168"}
	}

	exists, err := s.identity.MemberExists(ctx, challengedID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up challenged member: %w", err)
	}
	if !exists {
		return nil, ErrMemberNotFound
	}

	if stake > 0 {
		balance, err := s.ledger.GetBalance(ctx, challengerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get challenger balance: %w", err)
		}
		if balance < stake {
			return nil, ErrInsufficientFunds
		}
	}

	for _, memberID := range []uuid.UUID{challengerID, challengedID} {
		linked, err := s.identity.IsLinkedToHTB(ctx, memberID)
		if err != nil {
			return nil, fmt.Errorf("failed to check HTB link: %w", err)
		}
		if !linked {
			return nil, ErrHTBNotLinked
		}
	}

	duel := &model.Duel{
		ID:                uuid.New(),
		ChallengerID:      challengerID,
		ChallengedID:      challengedID,
		MachineID:         machineID,
		MachineName:       machineName,
		MachineDifficulty: machineDifficulty,
		Status:            model.DuelPending,
		ChallengerStake:   stake,
		ChallengedStake:   0,
		DurationHours:     durationHours,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.repo.CreateDuel(ctx, duel); err != nil {
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}

	s.notifier.Notify(ctx, challengedID, model.NotifyDuelChallenge,
		"New challenge!",
		fmt.Sprintf("You have been challenged on %s", machineName),
		map[string]interface{}{"duel_id": duel.ID.String(), "machine_id": machineID})

	return duel, nil
}

// Respond accepts or refuses a pending duel. Acceptance locks both stakes
// as one logical transaction: either both debits land and the duel goes
// active, or nothing changes. Refusal cancels with no ledger effect.
func (s *DuelService) Respond(ctx context.Context, duelID, memberID uuid.UUID, accept bool) error {
	duel, err := s.repo.GetDuelByID(ctx, duelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDuelNotFound
		}
		return fmt.Errorf("failed to get duel: %w", err)
	}

	if duel.ChallengedID != memberID {
		return ErrNotParticipant
	}
	if duel.Status != model.DuelPending {
		return ErrDuelNotPending
	}

	if !accept {
		err = s.repo.CancelDuel(ctx, duelID)
		if err != nil {
			if errors.Is(err, repository.ErrDuelNotPending) {
				return ErrDuelNotPending
			}
			return fmt.Errorf("failed to cancel duel: %w", err)
		}

		s.notifier.Notify(ctx, duel.ChallengerID, model.NotifyDuelRefused,
			"Challenge refused",
			fmt.Sprintf("Your challenge on %s was refused", duel.MachineName),
			map[string]interface{}{"duel_id": duelID.String()})
		return nil
	}

	stake := duel.ChallengerStake
	endsAt := time.Now().UTC().Add(time.Duration(duel.DurationHours) * time.Hour)

	var debits []*model.PointsTransaction
	if stake > 0 {
		now := time.Now().UTC()
		description := fmt.Sprintf("Duel stake: %s", duel.MachineName)
		debits = []*model.PointsTransaction{
			{
				ID:          uuid.New(),
				MemberID:    duel.ChallengerID,
				Amount:      -stake,
				Source:      model.SourceDuelParticipation,
				Description: description,
				CreatedAt:   now,
			},
			{
				ID:          uuid.New(),
				MemberID:    duel.ChallengedID,
				Amount:      -stake,
				Source:      model.SourceDuelParticipation,
				Description: description,
				CreatedAt:   now,
			},
		}
	}

	err = s.repo.ActivateDuel(ctx, duelID, stake, endsAt, debits)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuelNotPending):
			return ErrDuelNotPending
		case errors.Is(err, repository.ErrInsufficientFunds):
			return ErrInsufficientFunds
		}
		return fmt.Errorf("failed to activate duel: %w", err)
	}

	s.notifier.Notify(ctx, duel.ChallengerID, model.NotifyDuelAccepted,
		"Challenge accepted!",
		fmt.Sprintf("Your challenge on %s is on. It ends in %dh", duel.MachineName, duel.DurationHours),
		map[string]interface{}{"duel_id": duelID.String()})

	return nil
}

// Resolve pays the pot to the winner and closes the duel. Driven by the
// external result-determination collaborator.
func (s *DuelService) Resolve(ctx context.Context, duelID, winnerID uuid.UUID) error {
	log := logger.Logger()

	duel, err := s.repo.GetDuelByID(ctx, duelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDuelNotFound
		}
		return fmt.Errorf("failed to get duel: %w", err)
	}

	if winnerID != duel.ChallengerID && winnerID != duel.ChallengedID {
		return ErrNotParticipant
	}
	if duel.Status != model.DuelActive {
		return ErrDuelNotActive
	}

	pot := duel.ChallengerStake + duel.ChallengedStake
	var payout *model.PointsTransaction
	if pot > 0 {
		payout = &model.PointsTransaction{
			ID:          uuid.New(),
			MemberID:    winnerID,
			Amount:      pot,
			Source:      model.SourceDuelWin,
			Description: fmt.Sprintf("Duel won: %s", duel.MachineName),
			CreatedAt:   time.Now().UTC(),
		}
	}

	err = s.repo.CompleteDuel(ctx, duelID, winnerID, payout)
	if err != nil {
		if errors.Is(err, repository.ErrDuelNotActive) {
			return ErrDuelNotActive
		}
		return fmt.Errorf("failed to complete duel: %w", err)
	}

	if err := s.ranks.UpdateMemberRank(ctx, winnerID); err != nil {
		log.Error("failed to update winner rank",
			zap.String("member_id", winnerID.String()), zap.Error(err))
	}

	loserID := duel.ChallengerID
	if winnerID == duel.ChallengerID {
		loserID = duel.ChallengedID
	}

	s.notifier.Notify(ctx, winnerID, model.NotifyDuelWon,
		"Duel won!",
		fmt.Sprintf("You won the duel on %s. +%d points!", duel.MachineName, pot),
		map[string]interface{}{"duel_id": duelID.String(), "points": pot})
	s.notifier.Notify(ctx, loserID, model.NotifyDuelLost,
		"Duel lost",
		fmt.Sprintf("You lost the duel on %s", duel.MachineName),
		map[string]interface{}{"duel_id": duelID.String()})

	return nil
}

func (s *DuelService) Get(ctx context.Context, duelID uuid.UUID) (*model.Duel, error) {
	duel, err := s.repo.GetDuelByID(ctx, duelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDuelNotFound
		}
		return nil, fmt.Errorf("failed to get duel: %w", err)
	}
	return duel, nil
}

func (s *DuelService) ListForMember(ctx context.Context, memberID uuid.UUID, status *model.DuelStatus) ([]*model.Duel, error) {
	duels, err := s.repo.ListDuelsForMember(ctx, memberID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list duels: %w", err)
	}
	return duels, nil
}
