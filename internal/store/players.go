package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rallio-queue/internal/models"
	"rallio-queue/internal/services"
)

func (s *Mongo) PlayersByUserIDs(ctx context.Context, userIDs []string) (map[string]models.PlayerRating, error) {
	cursor, err := s.db.Players().Find(ctx, bson.M{"userId": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var players []models.PlayerRating
	if err := cursor.All(ctx, &players); err != nil {
		return nil, err
	}

	out := make(map[string]models.PlayerRating, len(players))
	for _, p := range players {
		out[p.UserID] = p
	}
	return out, nil
}

// ApplyPlayerOutcome upserts one match outcome onto the player record. A
// first-time player is seeded with the default rating and skill level.
func (s *Mongo) ApplyPlayerOutcome(ctx context.Context, userID string, outcome services.PlayerOutcome) error {
	now := time.Now()

	inc := bson.M{"gamesPlayed": 1}
	switch {
	case outcome.Draw:
		inc["draws"] = 1
	case outcome.Won:
		inc["wins"] = 1
	default:
		inc["losses"] = 1
	}

	set := bson.M{"updatedAt": now}
	if outcome.Rating != nil {
		set["rating"] = *outcome.Rating
	}
	if outcome.SkillLevel != nil {
		set["skillLevel"] = *outcome.SkillLevel
		set["skillLevelUpdatedAt"] = now
	}

	setOnInsert := bson.M{
		"userId":    userID,
		"createdAt": now,
	}
	if outcome.Rating == nil {
		setOnInsert["rating"] = models.DefaultRating
	}
	if outcome.SkillLevel == nil {
		setOnInsert["skillLevel"] = models.DefaultSkillLevel
	}

	_, err := s.db.Players().UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$inc":         inc,
			"$set":         set,
			"$setOnInsert": setOnInsert,
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// SeedPlayer creates the player record for a self-declared skill level with
// its band-midpoint seed rating. Existing records are left untouched.
func (s *Mongo) SeedPlayer(ctx context.Context, userID string, skillLevel int, rating float64) (bool, error) {
	now := time.Now()
	result, err := s.db.Players().UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$setOnInsert": bson.M{
			"userId":     userID,
			"rating":     rating,
			"skillLevel": skillLevel,
			"createdAt":  now,
			"updatedAt":  now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return result.UpsertedCount > 0, nil
}

func (s *Mongo) SetSkillLevel(ctx context.Context, userID string, skillLevel int, at time.Time) (bool, error) {
	result, err := s.db.Players().UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{
			"skillLevel":          skillLevel,
			"skillLevelUpdatedAt": at,
			"updatedAt":           at,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) TopPlayers(ctx context.Context, limit int) ([]models.PlayerRating, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.db.Players().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var players []models.PlayerRating
	if err := cursor.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}
