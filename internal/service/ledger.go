package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/repository"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 10

// LedgerService is the single path through which any point change flows.
// Every call appends a transaction row and moves the balance by the same
// delta, atomically. Nothing retries automatically; callers decide.
type LedgerService struct {
	repo LedgerRepository
}

func NewLedgerService(repo LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

func (s *LedgerService) Credit(ctx context.Context, memberID uuid.UUID, amount int, source model.PointsSource, description string) error {
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	return s.record(ctx, memberID, amount, source, description, false)
}

func (s *LedgerService) Debit(ctx context.Context, memberID uuid.UUID, amount int, source model.PointsSource, description string) error {
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	return s.record(ctx, memberID, -amount, source, description, false)
}

// Adjust records a signed delta on behalf of an admin. Negative adjustments
// may drive the balance below zero.
func (s *LedgerService) Adjust(ctx context.Context, memberID uuid.UUID, amount int, description string) error {
	if amount == 0 {
		return &ValidationError{Field: "amount", Message: "must be non-zero"}
	}
	if description == "" {
		description = "Admin adjustment"
	}
	return s.record(ctx, memberID, amount, model.SourceManualAdjustment, description, true)
}

func (s *LedgerService) record(ctx context.Context, memberID uuid.UUID, amount int, source model.PointsSource, description string, allowNegative bool) error {
	if !source.Valid() {
		return &ValidationError{Field: "source", Message: fmt.Sprintf("unknown points source %q", source)}
	}

	t := &model.PointsTransaction{
		ID:          uuid.New(),
		MemberID:    memberID,
		Amount:      amount,
		Source:      source,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.repo.RecordTransaction(ctx, t, allowNegative)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return ErrInsufficientFunds
		}
		return err
	}

	return nil
}

func (s *LedgerService) GetBalance(ctx context.Context, memberID uuid.UUID) (int, error) {
	balance, err := s.repo.GetBalance(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (s *LedgerService) GetHistory(ctx context.Context, memberID uuid.UUID, limit int) ([]*model.PointsTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	history, err := s.repo.GetHistory(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return history, nil
}

// AwardByRule credits the configured value for a rule type, e.g. HTB
// machine owns. Unknown or inactive rules award nothing.
func (s *LedgerService) AwardByRule(ctx context.Context, memberID uuid.UUID, ruleType, description string) (int, error) {
	rule, err := s.repo.GetPointsRule(ctx, ruleType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get points rule: %w", err)
	}
	if rule.PointsValue <= 0 {
		return 0, nil
	}

	err = s.Credit(ctx, memberID, rule.PointsValue, model.PointsSource(rule.RuleType), description)
	if err != nil {
		return 0, err
	}

	return rule.PointsValue, nil
}
