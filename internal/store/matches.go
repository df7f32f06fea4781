package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rallio-queue/internal/models"
)

func (s *Mongo) InsertMatch(ctx context.Context, m *models.Match) error {
	_, err := s.db.Matches().InsertOne(ctx, m)
	return err
}

func (s *Mongo) GetMatch(ctx context.Context, id primitive.ObjectID) (*models.Match, error) {
	var m models.Match
	err := s.db.Matches().FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Mongo) CountMatches(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	return s.db.Matches().CountDocuments(ctx, bson.M{"sessionId": sessionID})
}

func (s *Mongo) StartMatch(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	result, err := s.db.Matches().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.MatchScheduled},
		bson.M{"$set": bson.M{
			"status":    models.MatchInProgress,
			"startedAt": at,
			"updatedAt": at,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) CompleteMatch(ctx context.Context, id primitive.ObjectID, scoreA, scoreB int, winner models.MatchWinner, at time.Time) (bool, error) {
	result, err := s.db.Matches().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.MatchInProgress},
		bson.M{"$set": bson.M{
			"status":      models.MatchCompleted,
			"scoreA":      scoreA,
			"scoreB":      scoreB,
			"winner":      winner,
			"completedAt": at,
			"updatedAt":   at,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) CancelMatch(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	result, err := s.db.Matches().UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []models.MatchStatus{models.MatchScheduled, models.MatchInProgress}}},
		bson.M{"$set": bson.M{
			"status":    models.MatchCancelled,
			"updatedAt": at,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) ActiveMatchForPlayer(ctx context.Context, userID string) (*models.Match, error) {
	filter := bson.M{
		"status": bson.M{"$in": []models.MatchStatus{models.MatchScheduled, models.MatchInProgress}},
		"$or": []bson.M{
			{"teamA": userID},
			{"teamB": userID},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var m models.Match
	err := s.db.Matches().FindOne(ctx, filter, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Mongo) ListMatches(ctx context.Context, sessionID primitive.ObjectID) ([]models.Match, error) {
	opts := options.Find().SetSort(bson.D{{Key: "matchNumber", Value: 1}})
	cursor, err := s.db.Matches().Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var matches []models.Match
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}
