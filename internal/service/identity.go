package service

import (
	"context"
	"errors"
	"fmt"

	"htb_guild_backend/internal/model"
	"htb_guild_backend/internal/repository"

	"github.com/google/uuid"
)

// IdentityService answers the engine's three identity questions from the
// members table. Account provisioning and OAuth live elsewhere; this only
// surfaces facts about existing members.
type IdentityService struct {
	members MemberRepository
}

func NewIdentityService(members MemberRepository) *IdentityService {
	return &IdentityService{members: members}
}

func (s *IdentityService) GetMember(ctx context.Context, memberID uuid.UUID) (*model.Member, error) {
	member, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

func (s *IdentityService) MemberExists(ctx context.Context, memberID uuid.UUID) (bool, error) {
	_, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *IdentityService) IsLinkedToHTB(ctx context.Context, memberID uuid.UUID) (bool, error) {
	member, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.HTBUserID != nil, nil
}

func (s *IdentityService) IsAdmin(ctx context.Context, memberID uuid.UUID) (bool, error) {
	member, err := s.members.GetMemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.IsAdmin, nil
}
