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

func (s *Mongo) InsertSession(ctx context.Context, session *models.QueueSession) error {
	_, err := s.db.QueueSessions().InsertOne(ctx, session)
	return err
}

func (s *Mongo) GetSession(ctx context.Context, id primitive.ObjectID) (*models.QueueSession, error) {
	var session models.QueueSession
	err := s.db.QueueSessions().FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Mongo) UpdateSessionStatus(ctx context.Context, id primitive.ObjectID, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	result, err := s.db.QueueSessions().UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) CloseSession(ctx context.Context, id primitive.ObjectID, totals *models.SessionTotals) (bool, error) {
	result, err := s.db.QueueSessions().UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": models.SessionStatusClosed}},
		bson.M{"$set": bson.M{
			"status":    models.SessionStatusClosed,
			"totals":    totals,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) ListSessionsByOrganizer(ctx context.Context, organizerID string) ([]models.QueueSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.db.QueueSessions().Find(ctx, bson.M{"organizerId": organizerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.QueueSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Mongo) ExpiredSessions(ctx context.Context, now time.Time) ([]models.QueueSession, error) {
	cursor, err := s.db.QueueSessions().Find(ctx, bson.M{
		"status":  bson.M{"$ne": models.SessionStatusClosed},
		"endTime": bson.M{"$lt": now},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.QueueSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
