package teams

import (
	"errors"
	"testing"

	"rallio-queue/internal/models"
)

func waiting(userIDs ...string) []models.Participant {
	out := make([]models.Participant, len(userIDs))
	for i, id := range userIDs {
		out[i] = models.Participant{UserID: id, Status: models.ParticipantWaiting}
	}
	return out
}

func TestSplitCasualKeepsJoinOrder(t *testing.T) {
	teamA, teamB, err := Split(waiting("p1", "p2", "p3", "p4"), nil, 4, models.ModeCasual)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if teamA[0] != "p1" || teamA[1] != "p2" {
		t.Errorf("team A = %v, want [p1 p2]", teamA)
	}
	if teamB[0] != "p3" || teamB[1] != "p4" {
		t.Errorf("team B = %v, want [p3 p4]", teamB)
	}
}

func TestSplitCompetitiveBalancesSkill(t *testing.T) {
	skills := map[string]int{"p1": 9, "p2": 8, "p3": 3, "p4": 2}
	teamA, teamB, err := Split(waiting("p1", "p2", "p3", "p4"), skills, 4, models.ModeCompetitive)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	// Snake-ish draft: strongest to A, next to B, then the weaker pair
	// fills whichever side trails.
	sum := func(team []string) int {
		total := 0
		for _, id := range team {
			total += skills[id]
		}
		return total
	}
	diff := sum(teamA) - sum(teamB)
	if diff < 0 {
		diff = -diff
	}
	if diff > 2 {
		t.Errorf("skill sums %d vs %d differ by more than 2", sum(teamA), sum(teamB))
	}
}

func TestSplitCompetitiveDefaultsUnknownSkill(t *testing.T) {
	skills := map[string]int{"p1": 10}
	teamA, teamB, err := Split(waiting("p1", "p2", "p3", "p4"), skills, 4, models.ModeCompetitive)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(teamA) != 2 || len(teamB) != 2 {
		t.Fatalf("uneven teams: %v vs %v", teamA, teamB)
	}
	if teamA[0] != "p1" {
		t.Errorf("strongest player should open team A, got %v", teamA)
	}
}

func TestSplitExactPartition(t *testing.T) {
	players := waiting("p1", "p2", "p3", "p4", "p5", "p6")
	teamA, teamB, err := Split(players, nil, 6, models.ModeCompetitive)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(teamA) != 3 || len(teamB) != 3 {
		t.Fatalf("teams %v / %v, want 3 players each", teamA, teamB)
	}

	seen := map[string]bool{}
	for _, id := range append(append([]string{}, teamA...), teamB...) {
		if seen[id] {
			t.Errorf("player %s assigned twice", id)
		}
		seen[id] = true
	}
	for _, p := range players {
		if !seen[p.UserID] {
			t.Errorf("player %s not assigned", p.UserID)
		}
	}
}

func TestSplitTakesTopOfQueueOnly(t *testing.T) {
	teamA, teamB, err := Split(waiting("p1", "p2", "p3"), nil, 2, models.ModeCasual)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for _, id := range append(append([]string{}, teamA...), teamB...) {
		if id == "p3" {
			t.Error("p3 is beyond the requested size and must stay queued")
		}
	}
}

func TestSplitInsufficientPlayers(t *testing.T) {
	_, _, err := Split(waiting("p1", "p2", "p3"), nil, 4, models.ModeCasual)
	if !errors.Is(err, ErrInsufficientPlayers) {
		t.Errorf("got %v, want ErrInsufficientPlayers", err)
	}
}

func TestSplitRejectsBadSizes(t *testing.T) {
	for _, size := range []int{0, 1, 3, -2} {
		if _, _, err := Split(waiting("p1", "p2", "p3", "p4"), nil, size, models.ModeCasual); err == nil {
			t.Errorf("size %d accepted, want error", size)
		}
	}
}
