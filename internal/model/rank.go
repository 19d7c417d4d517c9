package model

import "github.com/google/uuid"

// Rank is a tier unlocked once a member's balance crosses PointsRequired.
type Rank struct {
	ID             uuid.UUID
	Name           string
	DisplayName    string
	PointsRequired int
	Color          string
	Icon           string
	OrderIndex     int
}
