package model

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifyDuelChallenge  NotificationType = "DUEL_CHALLENGE"
	NotifyDuelAccepted   NotificationType = "DUEL_ACCEPTED"
	NotifyDuelRefused    NotificationType = "DUEL_REFUSED"
	NotifyDuelWon        NotificationType = "DUEL_WON"
	NotifyDuelLost       NotificationType = "DUEL_LOST"
	NotifyHTBAchievement NotificationType = "HTB_ACHIEVEMENT"
	NotifyPointsEarned   NotificationType = "POINTS_EARNED"
	NotifyQuestAssigned  NotificationType = "QUEST_ASSIGNED"
	NotifyQuestValidated NotificationType = "QUEST_VALIDATED"
	NotifyQuestRejected  NotificationType = "QUEST_REJECTED"
)

// Notification is an outbox row. DispatchedAt is nil until the dispatcher
// has handed the row to the delivery transport.
type Notification struct {
	ID           uuid.UUID
	MemberID     uuid.UUID
	Type         NotificationType
	Title        string
	Message      string
	Data         json.RawMessage
	Read         bool
	DispatchedAt *time.Time
	CreatedAt    time.Time
}
