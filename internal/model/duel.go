package model

import (
	"time"

	"github.com/google/uuid"
)

type DuelStatus string

const (
	DuelPending   DuelStatus = "pending"
	DuelActive    DuelStatus = "active"
	DuelCompleted DuelStatus = "completed"
	DuelCancelled DuelStatus = "cancelled"
)

var duelTransitions = map[DuelStatus][]DuelStatus{
	DuelPending: {DuelActive, DuelCancelled},
	DuelActive:  {DuelCompleted},
}

func (s DuelStatus) CanTransition(to DuelStatus) bool {
	for _, next := range duelTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Duel struct {
	ID                uuid.UUID
	ChallengerID      uuid.UUID
	ChallengedID      uuid.UUID
	MachineID         int64
	MachineName       string
	MachineDifficulty string
	Status            DuelStatus
	ChallengerStake   int
	ChallengedStake   int
	DurationHours     int
	EndsAt            *time.Time
	WinnerID          *uuid.UUID
	CreatedAt         time.Time
}
