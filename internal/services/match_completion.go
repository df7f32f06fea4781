package services

import (
	"context"
	"fmt"
	"log"

	"rallio-queue/internal/elo"
	"rallio-queue/internal/models"
)

// CompletionService fans a recorded result out to the ledger and the player
// records. It runs inside the RecordScore transaction: any error aborts the
// whole completion.
type CompletionService struct {
	store Store
	calc  *elo.Calculator
}

func NewCompletionService(store Store, calc *elo.Calculator) *CompletionService {
	return &CompletionService{store: store, calc: calc}
}

// ProcessMatchCompletion applies one completed match:
//   - every player: games played +1, amount owed += session cost, row back
//     to waiting (joinedAt untouched, they keep their queue spot)
//   - winners additionally: games won +1
//   - player records: win/loss/draw counters in every mode; rating and skill
//     level only for decided competitive results
//
// A player who left the session mid-match has no active row left to charge;
// their ledger is skipped but their player record still takes the result.
func (s *CompletionService) ProcessMatchCompletion(ctx context.Context, session *models.QueueSession, match *models.Match, winner models.MatchWinner) error {
	players := match.Players()
	winningTeam := match.WinningTeam(winner)
	draw := winner == models.WinnerDraw

	won := make(map[string]bool, len(winningTeam))
	for _, id := range winningTeam {
		won[id] = true
	}

	for _, userID := range players {
		charged, err := s.store.ApplyMatchCharge(ctx, match.SessionID, userID, won[userID], session.CostPerGame)
		if err != nil {
			return fmt.Errorf("failed to charge player %s: %w", userID, err)
		}
		if !charged {
			log.Printf("Player %s left session %s mid-match, skipping ledger charge",
				userID, match.SessionID.Hex())
		}
	}

	ratings, err := s.store.PlayersByUserIDs(ctx, players)
	if err != nil {
		return fmt.Errorf("failed to load player ratings: %w", err)
	}

	ratingOf := func(userID string) float64 {
		if r, ok := ratings[userID]; ok {
			return r.Rating
		}
		return models.DefaultRating
	}

	for _, userID := range players {
		outcome := PlayerOutcome{Won: won[userID], Draw: draw}

		if session.Mode == models.ModeCompetitive && !draw {
			opponents := match.OpposingTeam(userID)
			oppRatings := make([]float64, 0, len(opponents))
			for _, opp := range opponents {
				oppRatings = append(oppRatings, ratingOf(opp))
			}

			current := ratingOf(userID)
			newRating := s.calc.NewRating(current, elo.AverageRating(oppRatings), won[userID])
			outcome.Rating = &newRating

			stored := models.DefaultSkillLevel
			if r, ok := ratings[userID]; ok {
				stored = r.SkillLevel
			}
			computed := elo.SkillLevelFromRating(newRating)
			applied, ok := elo.ClampSkillLevel(stored, computed)
			if !ok {
				log.Printf("Skill level jump suppressed for player %s: stored %d, computed %d (rating %.0f)",
					userID, stored, computed, newRating)
			}
			if applied != stored {
				outcome.SkillLevel = &applied
			}
		}

		if err := s.store.ApplyPlayerOutcome(ctx, userID, outcome); err != nil {
			return fmt.Errorf("failed to update player record for %s: %w", userID, err)
		}
	}

	log.Printf("Match %s (#%d) completed: winner=%s, %d player(s) processed",
		match.ID.Hex(), match.MatchNumber, winner, len(players))
	return nil
}
