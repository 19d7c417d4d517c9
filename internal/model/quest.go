package model

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type QuestDifficulty string

const (
	DifficultyEasy   QuestDifficulty = "easy"
	DifficultyMedium QuestDifficulty = "medium"
	DifficultyHard   QuestDifficulty = "hard"
	DifficultyInsane QuestDifficulty = "insane"
)

func (d QuestDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyInsane:
		return true
	}
	return false
}

type QuestType string

const (
	QuestTypeManual QuestType = "manual"
	QuestTypeAuto   QuestType = "auto"
)

func (t QuestType) Valid() bool {
	return t == QuestTypeManual || t == QuestTypeAuto
}

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

func (t RecurrenceType) Valid() bool {
	switch t {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

type Quest struct {
	ID                 uuid.UUID
	Title              string
	Description        string
	PointsReward       int
	Difficulty         QuestDifficulty
	CategoryID         *uuid.UUID
	QuestType          QuestType
	Deadline           *time.Time
	PenaltyPercentage  int
	RecurrenceType     RecurrenceType
	RecurrenceResetDay *int
	Active             bool
	CreatedBy          uuid.UUID
	CreatedAt          time.Time
}

type MemberQuestStatus string

const (
	StatusAssigned   MemberQuestStatus = "assigned"
	StatusInProgress MemberQuestStatus = "in_progress"
	StatusLate       MemberQuestStatus = "late"
	StatusCompleted  MemberQuestStatus = "completed"
	StatusFailed     MemberQuestStatus = "failed"
)

// memberQuestTransitions is the closed transition table for assignments.
// Anything not listed here is rejected rather than trusted from callers.
var memberQuestTransitions = map[MemberQuestStatus][]MemberQuestStatus{
	StatusAssigned:   {StatusInProgress, StatusLate},
	StatusInProgress: {StatusInProgress, StatusLate, StatusCompleted, StatusFailed},
	StatusLate:       {StatusInProgress, StatusLate, StatusCompleted, StatusFailed},
}

func (s MemberQuestStatus) CanTransition(to MemberQuestStatus) bool {
	for _, next := range memberQuestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s MemberQuestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MemberQuest is the per-(quest, member) assignment record. PointsEarned is
// set exactly once, when the submission is approved.
type MemberQuest struct {
	ID             uuid.UUID
	QuestID        uuid.UUID
	MemberID       uuid.UUID
	Status         MemberQuestStatus
	AssignedAt     time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ValidatedBy    *uuid.UUID
	SubmissionData json.RawMessage
	Feedback       *string
	PointsEarned   *int
	WasLate        bool
}

// MemberQuestView is an assignment joined with its quest, for member-facing
// listings.
type MemberQuestView struct {
	MemberQuest
	QuestTitle   string
	PointsReward int
	Difficulty   QuestDifficulty
	Deadline     *time.Time
}

// QuestProgress tracks one recurrence period of a recurring quest for one
// member. Unique per (quest, member, period_start).
type QuestProgress struct {
	ID            uuid.UUID
	QuestID       uuid.UUID
	MemberID      uuid.UUID
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Completed     bool
	CompletedAt   *time.Time
	PointsAwarded int
}
