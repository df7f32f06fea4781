package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"rallio-queue/internal/elo"
	"rallio-queue/internal/models"
)

// SkillChangeCooldown is the minimum time between self-declared skill level
// changes for a player with an existing record.
const SkillChangeCooldown = 30 * 24 * time.Hour

// PlayerService manages cross-session player records: self-declared skill
// levels and the rating seeds derived from them.
type PlayerService struct {
	store Store
}

func NewPlayerService(store Store) *PlayerService {
	return &PlayerService{store: store}
}

// DeclareSkillLevel records a player's self-assessed skill level. A player
// with no record yet is seeded with a rating in the middle of the declared
// band. An existing player may adjust their level by at most
// elo.MaxSkillLevelJump tiers, once per cooldown window; their earned rating
// is never touched.
func (s *PlayerService) DeclareSkillLevel(ctx context.Context, userID string, level int) (*models.PlayerRating, error) {
	if level < models.MinSkillLevel || level > models.MaxSkillLevel {
		return nil, fmt.Errorf("skill level must be between %d and %d", models.MinSkillLevel, models.MaxSkillLevel)
	}

	seeded, err := s.store.SeedPlayer(ctx, userID, level, elo.RatingForSkillLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to seed player record: %w", err)
	}
	if seeded {
		log.Printf("Player %s declared skill level %d, seeded rating %.0f",
			userID, level, elo.RatingForSkillLevel(level))
		return s.playerRecord(ctx, userID)
	}

	players, err := s.store.PlayersByUserIDs(ctx, []string{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load player record: %w", err)
	}
	existing, ok := players[userID]
	if !ok {
		return nil, ErrConcurrentModification
	}
	if existing.SkillLevel == level {
		return &existing, nil
	}

	diff := level - existing.SkillLevel
	if diff < 0 {
		diff = -diff
	}
	if diff > elo.MaxSkillLevelJump {
		return nil, ErrSkillChangeTooLarge
	}
	if existing.SkillLevelUpdatedAt != nil {
		if remaining := SkillChangeCooldown - time.Since(*existing.SkillLevelUpdatedAt); remaining > 0 {
			return nil, &SkillChangeCooldownError{Remaining: remaining}
		}
	}

	updated, err := s.store.SetSkillLevel(ctx, userID, level, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to update skill level: %w", err)
	}
	if !updated {
		return nil, ErrConcurrentModification
	}

	log.Printf("Player %s changed skill level %d -> %d", userID, existing.SkillLevel, level)
	return s.playerRecord(ctx, userID)
}

func (s *PlayerService) playerRecord(ctx context.Context, userID string) (*models.PlayerRating, error) {
	players, err := s.store.PlayersByUserIDs(ctx, []string{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load player record: %w", err)
	}
	p, ok := players[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}
