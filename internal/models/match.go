package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
)

type MatchWinner string

const (
	WinnerTeamA MatchWinner = "team_a"
	WinnerTeamB MatchWinner = "team_b"
	WinnerDraw  MatchWinner = "draw"
)

func IsValidWinner(s string) bool {
	switch MatchWinner(s) {
	case WinnerTeamA, WinnerTeamB, WinnerDraw:
		return true
	}
	return false
}

// Match is one game assigned out of a session's queue.
type Match struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID   primitive.ObjectID `json:"sessionId" bson:"sessionId"`
	CourtID     string             `json:"courtId" bson:"courtId"`
	MatchNumber int                `json:"matchNumber" bson:"matchNumber"`
	GameFormat  GameFormat         `json:"gameFormat" bson:"gameFormat"`
	TeamA       []string           `json:"teamA" bson:"teamA"`
	TeamB       []string           `json:"teamB" bson:"teamB"`
	ScoreA      *int               `json:"scoreA,omitempty" bson:"scoreA,omitempty"`
	ScoreB      *int               `json:"scoreB,omitempty" bson:"scoreB,omitempty"`
	Winner      MatchWinner        `json:"winner,omitempty" bson:"winner,omitempty"`
	Status      MatchStatus        `json:"status" bson:"status"`
	StartedAt   *time.Time         `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Players returns every assigned player, team A first.
func (m *Match) Players() []string {
	out := make([]string, 0, len(m.TeamA)+len(m.TeamB))
	out = append(out, m.TeamA...)
	out = append(out, m.TeamB...)
	return out
}

// HasPlayer reports whether userID is assigned to either team.
func (m *Match) HasPlayer(userID string) bool {
	for _, id := range m.TeamA {
		if id == userID {
			return true
		}
	}
	for _, id := range m.TeamB {
		if id == userID {
			return true
		}
	}
	return false
}

// WinningTeam returns the winner-side roster for a decided result, nil for a draw.
func (m *Match) WinningTeam(winner MatchWinner) []string {
	switch winner {
	case WinnerTeamA:
		return m.TeamA
	case WinnerTeamB:
		return m.TeamB
	}
	return nil
}

// OpposingTeam returns the roster the given player is playing against.
func (m *Match) OpposingTeam(userID string) []string {
	for _, id := range m.TeamA {
		if id == userID {
			return m.TeamB
		}
	}
	return m.TeamA
}
