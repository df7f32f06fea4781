package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"rallio-queue/internal/config"
	"rallio-queue/internal/db"

	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load config
	cfg, err := config.Load("dev")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to MongoDB
	mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	ctx := context.Background()

	collections := []struct {
		name string
		coll *mongo.Collection
	}{
		{"queue sessions", mongodb.QueueSessions()},
		{"queue participants", mongodb.QueueParticipants()},
		{"matches", mongodb.Matches()},
		{"players", mongodb.Players()},
		{"notifications", mongodb.Notifications()},
		{"queue events", mongodb.QueueEvents()},
		{"cleanup locks", mongodb.CleanupLocks()},
		{"audit log", mongodb.AuditLog()},
	}

	for _, c := range collections {
		result, err := c.coll.DeleteMany(ctx, map[string]interface{}{})
		if err != nil {
			log.Fatalf("Failed to delete %s: %v", c.name, err)
		}
		fmt.Printf("Deleted %d %s\n", result.DeletedCount, c.name)
	}

	fmt.Println("Database cleared successfully")
}
