package audit

import (
	"context"
	"log"
	"net/http"
	"time"

	"rallio-queue/internal/db"
	"rallio-queue/internal/middleware"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types for organizer actions worth a paper trail.
const (
	EventSessionCreated     = "session_created"
	EventSessionClosed      = "session_closed"
	EventMatchCancelled     = "match_cancelled"
	EventParticipantRemoved = "participant_removed"
	EventFeeWaived          = "fee_waived"
	EventMarkedPaid         = "marked_paid"
)

// AuditEvent records one organizer action.
type AuditEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	EventType string             `bson:"eventType"`
	ActorID   string             `bson:"actorId"`
	SessionID string             `bson:"sessionId,omitempty"`
	IP        string             `bson:"ip"`
	UserAgent string             `bson:"userAgent"`
	Details   string             `bson:"details,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// LogEvent writes an audit event to the database (fire-and-forget).
func LogEvent(database *db.MongoDB, eventType, actorID, sessionID string, r *http.Request, details string) {
	event := AuditEvent{
		EventType: eventType,
		ActorID:   actorID,
		SessionID: sessionID,
		IP:        middleware.GetClientIP(r),
		UserAgent: r.UserAgent(),
		Details:   details,
		CreatedAt: time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := database.AuditLog().InsertOne(ctx, bson.M{
			"eventType": event.EventType,
			"actorId":   event.ActorID,
			"sessionId": event.SessionID,
			"ip":        event.IP,
			"userAgent": event.UserAgent,
			"details":   event.Details,
			"createdAt": event.CreatedAt,
		}); err != nil {
			log.Printf("Audit log write failed: %v", err)
		}
	}()
}
