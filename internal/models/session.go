package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionMode string

const (
	ModeCasual      SessionMode = "casual"
	ModeCompetitive SessionMode = "competitive"
)

type GameFormat string

const (
	FormatSingles GameFormat = "singles"
	FormatDoubles GameFormat = "doubles"
	FormatMixed   GameFormat = "mixed"
)

// PlayersPerMatch returns the default match size for a format.
func (f GameFormat) PlayersPerMatch() int {
	if f == FormatSingles {
		return 2
	}
	return 4
}

func IsValidGameFormat(s string) bool {
	switch GameFormat(s) {
	case FormatSingles, FormatDoubles, FormatMixed:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusActive SessionStatus = "active"
	SessionStatusPaused SessionStatus = "paused"
	SessionStatusClosed SessionStatus = "closed"
)

// SessionTotals is the close-out summary stored on the session when it ends.
type SessionTotals struct {
	TotalGames        int       `json:"totalGames" bson:"totalGames"`
	TotalRevenue      float64   `json:"totalRevenue" bson:"totalRevenue"`
	TotalParticipants int       `json:"totalParticipants" bson:"totalParticipants"`
	UnpaidBalances    int       `json:"unpaidBalances" bson:"unpaidBalances"`
	ClosedAt          time.Time `json:"closedAt" bson:"closedAt"`
	ClosedBy          string    `json:"closedBy" bson:"closedBy"`
}

// QueueSession is one court-time-window during which players queue for matches.
type QueueSession struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CourtID     string             `json:"courtId" bson:"courtId"`
	OrganizerID string             `json:"organizerId" bson:"organizerId"`
	Mode        SessionMode        `json:"mode" bson:"mode"`
	GameFormat  GameFormat         `json:"gameFormat" bson:"gameFormat"`
	MaxPlayers  int                `json:"maxPlayers" bson:"maxPlayers"`
	CostPerGame float64            `json:"costPerGame" bson:"costPerGame"`
	Status      SessionStatus      `json:"status" bson:"status"`
	StartTime   time.Time          `json:"startTime" bson:"startTime"`
	EndTime     time.Time          `json:"endTime" bson:"endTime"`
	Totals      *SessionTotals     `json:"totals,omitempty" bson:"totals,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Joinable reports whether the session accepts new queue entries.
// Capacity is advisory at join time; it is only enforced at match assignment.
func (s *QueueSession) Joinable() bool {
	return s.Status == SessionStatusOpen || s.Status == SessionStatusActive
}
