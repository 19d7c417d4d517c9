package model

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID            uuid.UUID
	Username      string
	DisplayName   string
	IsAdmin       bool
	CurrentRankID *uuid.UUID
	HTBUserID     *int64
	CreatedAt     time.Time
}

type LeaderboardEntry struct {
	Position    int
	MemberID    uuid.UUID
	Username    string
	DisplayName string
	TotalPoints int
	RankName    string
}
