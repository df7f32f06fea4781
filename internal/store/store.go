// Package store is the MongoDB implementation of the persistence ports the
// services depend on.
package store

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rallio-queue/internal/db"
)

type Mongo struct {
	db *db.MongoDB
}

func NewMongo(database *db.MongoDB) *Mongo {
	return &Mongo{db: database}
}

// WithTransaction runs fn inside a single multi-document transaction. The
// callback receives a session-bound context; every store call made with it
// joins the transaction.
func (s *Mongo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.db.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// TryAcquireLock grabs a named cross-instance lock via a conditional upsert.
// Returns false when another instance holds it.
func (s *Mongo) TryAcquireLock(ctx context.Context, name string, ttl time.Duration) bool {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	now := time.Now()
	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"lockedUntil": bson.M{"$exists": false}},
			{"lockedUntil": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"lockedUntil": now.Add(ttl),
			"lockedBy":    hostname,
			"lockedAt":    now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true)
	err = s.db.CleanupLocks().FindOneAndUpdate(ctx, filter, update, opts).Err()
	// Any error means another instance holds the lock (duplicate key or no match).
	return err == nil
}

// ReleaseLock expires the named lock immediately.
func (s *Mongo) ReleaseLock(ctx context.Context, name string) {
	_, err := s.db.CleanupLocks().UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"lockedUntil": time.Now()}},
	)
	if err != nil {
		log.Printf("Failed to release lock %s: %v", name, err)
	}
}
