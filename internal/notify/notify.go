// Package notify writes in-app notification documents for players. Delivery
// is best effort: writes happen on a background goroutine and failures are
// logged, never returned to the caller.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"rallio-queue/internal/db"
	"rallio-queue/internal/models"
)

const (
	KindMatchAssigned    = "match_assigned"
	KindSessionEnded     = "session_ended"
	KindRemovedFromQueue = "removed_from_queue"
	KindPaymentRecorded  = "payment_recorded"
	KindFeeWaived        = "fee_waived"
)

// Message is one notification template instance, fanned out to players.
type Message struct {
	Kind  string
	Title string
	Body  string
	Data  map[string]string
}

func MatchAssigned(matchNumber int, courtID, matchID string) Message {
	return Message{
		Kind:  KindMatchAssigned,
		Title: "You're up!",
		Body:  fmt.Sprintf("You've been assigned to match #%d on court %s", matchNumber, courtID),
		Data:  map[string]string{"matchId": matchID},
	}
}

func SessionEnded(sessionID string) Message {
	return Message{
		Kind:  KindSessionEnded,
		Title: "Session ended",
		Body:  "The queue session has been closed by the organizer",
		Data:  map[string]string{"sessionId": sessionID},
	}
}

func RemovedFromQueue(sessionID string) Message {
	return Message{
		Kind:  KindRemovedFromQueue,
		Title: "Removed from queue",
		Body:  "The organizer removed you from the queue",
		Data:  map[string]string{"sessionId": sessionID},
	}
}

func PaymentRecorded(amount float64) Message {
	return Message{
		Kind:  KindPaymentRecorded,
		Title: "Payment recorded",
		Body:  fmt.Sprintf("A payment of %.2f was recorded on your balance", amount),
	}
}

func FeeWaived() Message {
	return Message{
		Kind:  KindFeeWaived,
		Title: "Fee waived",
		Body:  "The organizer waived your outstanding balance",
	}
}

// Service persists notifications to MongoDB.
type Service struct {
	db *db.MongoDB
}

func NewService(database *db.MongoDB) *Service {
	return &Service{db: database}
}

// NotifyPlayers writes one notification document per player in the
// background.
func (s *Service) NotifyPlayers(userIDs []string, msg Message) {
	if len(userIDs) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		now := time.Now()
		docs := make([]interface{}, 0, len(userIDs))
		for _, userID := range userIDs {
			docs = append(docs, models.Notification{
				UserID:    userID,
				Kind:      msg.Kind,
				Title:     msg.Title,
				Body:      msg.Body,
				Data:      msg.Data,
				CreatedAt: now,
			})
		}

		if _, err := s.db.Notifications().InsertMany(ctx, docs); err != nil {
			log.Printf("Failed to write %s notifications for %d player(s): %v", msg.Kind, len(userIDs), err)
		}
	}()
}
