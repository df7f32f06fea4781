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
	"rallio-queue/internal/services"
)

func (s *Mongo) InsertParticipant(ctx context.Context, p *models.Participant) error {
	_, err := s.db.QueueParticipants().InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return services.ErrDuplicateActiveParticipant
	}
	return err
}

func (s *Mongo) GetParticipant(ctx context.Context, id primitive.ObjectID) (*models.Participant, error) {
	return s.findParticipant(ctx, bson.M{"_id": id}, nil)
}

func (s *Mongo) ActiveParticipant(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error) {
	filter := bson.M{
		"sessionId": sessionID,
		"userId":    userID,
		"leftAt":    bson.M{"$exists": false},
	}
	return s.findParticipant(ctx, filter, nil)
}

func (s *Mongo) LatestParticipant(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error) {
	filter := bson.M{"sessionId": sessionID, "userId": userID}
	opts := options.FindOne().SetSort(bson.D{{Key: "joinedAt", Value: -1}})
	return s.findParticipant(ctx, filter, opts)
}

func (s *Mongo) findParticipant(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.Participant, error) {
	var p models.Participant
	var err error
	if opts != nil {
		err = s.db.QueueParticipants().FindOne(ctx, filter, opts).Decode(&p)
	} else {
		err = s.db.QueueParticipants().FindOne(ctx, filter).Decode(&p)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Mongo) ReactivateParticipant(ctx context.Context, id primitive.ObjectID, rejoinedAt time.Time) (bool, error) {
	result, err := s.db.QueueParticipants().UpdateOne(ctx,
		bson.M{"_id": id, "leftAt": bson.M{"$exists": true}},
		bson.M{
			"$set":   bson.M{"status": models.ParticipantWaiting, "joinedAt": rejoinedAt},
			"$unset": bson.M{"leftAt": ""},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) MarkLeft(ctx context.Context, id primitive.ObjectID, leftAt time.Time) (bool, error) {
	result, err := s.db.QueueParticipants().UpdateOne(ctx,
		bson.M{"_id": id, "leftAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"status": models.ParticipantLeft, "leftAt": leftAt}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) WaitingParticipants(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.Participant, error) {
	filter := bson.M{
		"sessionId": sessionID,
		"status":    models.ParticipantWaiting,
		"leftAt":    bson.M{"$exists": false},
	}
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.QueueParticipants().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var participants []models.Participant
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Mongo) CountWaitingBefore(ctx context.Context, sessionID primitive.ObjectID, joinedAt time.Time) (int64, error) {
	return s.db.QueueParticipants().CountDocuments(ctx, bson.M{
		"sessionId": sessionID,
		"status":    models.ParticipantWaiting,
		"leftAt":    bson.M{"$exists": false},
		"joinedAt":  bson.M{"$lte": joinedAt},
	})
}

func (s *Mongo) ListParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]models.Participant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	cursor, err := s.db.QueueParticipants().Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var participants []models.Participant
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Mongo) ListActiveParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]models.Participant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}})
	filter := bson.M{"sessionId": sessionID, "leftAt": bson.M{"$exists": false}}
	cursor, err := s.db.QueueParticipants().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var participants []models.Participant
	if err := cursor.All(ctx, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Mongo) MarkPlaying(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	result, err := s.db.QueueParticipants().UpdateMany(ctx,
		bson.M{
			"_id":    bson.M{"$in": ids},
			"status": models.ParticipantWaiting,
			"leftAt": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"status": models.ParticipantPlaying}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (s *Mongo) MarkWaiting(ctx context.Context, sessionID primitive.ObjectID, userIDs []string) error {
	_, err := s.db.QueueParticipants().UpdateMany(ctx,
		bson.M{
			"sessionId": sessionID,
			"userId":    bson.M{"$in": userIDs},
			"status":    models.ParticipantPlaying,
			"leftAt":    bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"status": models.ParticipantWaiting}},
	)
	return err
}

// ApplyMatchCharge records one completed game on the player's ledger row and
// returns them to the waiting pool. joinedAt stays untouched so the player
// keeps their queue spot. A player who left mid-match has no active row; the
// charge reports false and the caller skips them.
func (s *Mongo) ApplyMatchCharge(ctx context.Context, sessionID primitive.ObjectID, userID string, won bool, cost float64) (bool, error) {
	inc := bson.M{"gamesPlayed": 1, "amountOwed": cost}
	if won {
		inc["gamesWon"] = 1
	}

	var p models.Participant
	err := s.db.QueueParticipants().FindOneAndUpdate(ctx,
		bson.M{
			"sessionId": sessionID,
			"userId":    userID,
			"leftAt":    bson.M{"$exists": false},
		},
		bson.M{
			"$inc": inc,
			"$set": bson.M{"status": models.ParticipantWaiting},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Re-derive the payment status from the post-charge amounts.
	status := models.PaymentStatusFor(p.AmountSettled, p.AmountOwed)
	if status != p.PaymentStatus {
		_, err = s.db.QueueParticipants().UpdateOne(ctx,
			bson.M{"_id": p.ID},
			bson.M{"$set": bson.M{"paymentStatus": status}},
		)
	}
	return true, err
}

func (s *Mongo) RecordSettlement(ctx context.Context, id primitive.ObjectID, amount float64, status models.PaymentStatus) (bool, error) {
	result, err := s.db.QueueParticipants().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"amountSettled": amount},
			"$set": bson.M{"paymentStatus": status},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) SettleInFull(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := s.db.QueueParticipants().UpdateOne(ctx,
		bson.M{"_id": id},
		mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"amountSettled": "$amountOwed",
				"paymentStatus": models.PaymentPaid,
			}}},
		},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

func (s *Mongo) WaiveBalance(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := s.db.QueueParticipants().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"amountOwed":    0.0,
			"amountSettled": 0.0,
			"paymentStatus": models.PaymentPaid,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}
