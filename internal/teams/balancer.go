// Package teams splits a slice of waiting participants into two opposing
// teams, either by join order (casual play) or by a skill-balancing greedy
// draft (competitive play).
package teams

import (
	"errors"
	"fmt"
	"sort"

	"rallio-queue/internal/models"
)

// ErrInsufficientPlayers is returned when fewer players are waiting than the
// requested match size.
var ErrInsufficientPlayers = errors.New("not enough waiting players for a match")

// Split partitions the first size participants (already ordered by join time)
// into two teams of size/2.
//
// Casual mode keeps join order: first half team A, second half team B.
// Competitive mode sorts by skill descending (stable, so join order breaks
// ties) and assigns each player to the team with the lower skill sum, team A
// on ties, respecting the size/2 capacity.
//
// skills maps userID to skill level; missing entries count as
// models.DefaultSkillLevel.
func Split(participants []models.Participant, skills map[string]int, size int, mode models.SessionMode) (teamA, teamB []string, err error) {
	if size < 2 || size%2 != 0 {
		return nil, nil, fmt.Errorf("invalid match size %d: must be even and at least 2", size)
	}
	if len(participants) < size {
		return nil, nil, ErrInsufficientPlayers
	}

	half := size / 2
	picked := participants[:size]

	if mode != models.ModeCompetitive {
		for i, p := range picked {
			if i < half {
				teamA = append(teamA, p.UserID)
			} else {
				teamB = append(teamB, p.UserID)
			}
		}
		return teamA, teamB, nil
	}

	type ranked struct {
		userID string
		skill  int
	}
	players := make([]ranked, size)
	for i, p := range picked {
		skill, ok := skills[p.UserID]
		if !ok {
			skill = models.DefaultSkillLevel
		}
		players[i] = ranked{userID: p.UserID, skill: skill}
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].skill > players[j].skill
	})

	sumA, sumB := 0, 0
	for _, p := range players {
		switch {
		case len(teamA) < half && (sumA <= sumB || len(teamB) >= half):
			teamA = append(teamA, p.userID)
			sumA += p.skill
		default:
			teamB = append(teamB, p.userID)
			sumB += p.skill
		}
	}

	return teamA, teamB, nil
}
