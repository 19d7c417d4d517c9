package model

import (
	"time"

	"github.com/google/uuid"
)

type PointsSource string

const (
	SourceHTBMachine        PointsSource = "htb_machine"
	SourceHTBChallenge      PointsSource = "htb_challenge"
	SourceHTBBlood          PointsSource = "htb_blood"
	SourceQuestCompletion   PointsSource = "quest_completion"
	SourceDuelWin           PointsSource = "duel_win"
	SourceDuelParticipation PointsSource = "duel_participation"
	SourceDailyLogin        PointsSource = "daily_login"
	SourceManualAdjustment  PointsSource = "manual_adjustment"
)

func (s PointsSource) Valid() bool {
	switch s {
	case SourceHTBMachine, SourceHTBChallenge, SourceHTBBlood,
		SourceQuestCompletion, SourceDuelWin, SourceDuelParticipation,
		SourceDailyLogin, SourceManualAdjustment:
		return true
	}
	return false
}

// PointsTransaction is an append-only ledger entry. Rows are never
// updated or deleted once written.
type PointsTransaction struct {
	ID          uuid.UUID
	MemberID    uuid.UUID
	Amount      int
	Source      PointsSource
	Description string
	CreatedAt   time.Time
}

type MemberBalance struct {
	MemberID    uuid.UUID
	TotalPoints int
	UpdatedAt   time.Time
}

type PointsRule struct {
	RuleType    string
	PointsValue int
	Active      bool
}
