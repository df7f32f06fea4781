package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/models"
)

const (
	// DefaultRejoinCooldown is how long a player must wait after leaving
	// before rejoining the same session.
	DefaultRejoinCooldown = 5 * time.Minute

	// DefaultWaitPerSlot is the rough court time per queue position used for
	// wait estimates.
	DefaultWaitPerSlot = 15 * time.Minute
)

// QueueService handles players entering and leaving a session's queue.
type QueueService struct {
	store    Store
	events   EventPublisher
	cooldown time.Duration
	slotWait time.Duration
}

func NewQueueService(store Store, events EventPublisher, cooldown, slotWait time.Duration) *QueueService {
	if cooldown <= 0 {
		cooldown = DefaultRejoinCooldown
	}
	if slotWait <= 0 {
		slotWait = DefaultWaitPerSlot
	}
	return &QueueService{
		store:    store,
		events:   events,
		cooldown: cooldown,
		slotWait: slotWait,
	}
}

// Join adds the player to the session's queue. A returning player's closed
// row is reactivated in place so their ledger history carries over; joinedAt
// is reset to now. Capacity is not enforced here.
func (s *QueueService) Join(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if !session.Joinable() {
		return nil, ErrSessionClosed
	}

	latest, err := s.store.LatestParticipant(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	now := time.Now()

	if latest != nil {
		if latest.Active() {
			return nil, ErrAlreadyQueued
		}
		if remaining := s.cooldown - now.Sub(*latest.LeftAt); remaining > 0 {
			return nil, &CooldownError{Remaining: remaining}
		}

		ok, err := s.store.ReactivateParticipant(ctx, latest.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to reactivate participant: %w", err)
		}
		if !ok {
			// The row changed under us (parallel rejoin won the race).
			return nil, ErrAlreadyQueued
		}

		rejoined, err := s.store.GetParticipant(ctx, latest.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load participant: %w", err)
		}
		s.events.PublishSessionChanged(sessionID.Hex())
		log.Printf("Player %s rejoined session %s", userID, sessionID.Hex())
		return rejoined, nil
	}

	participant := &models.Participant{
		ID:            primitive.NewObjectID(),
		SessionID:     sessionID,
		UserID:        userID,
		Status:        models.ParticipantWaiting,
		PaymentStatus: models.PaymentUnpaid,
		JoinedAt:      now,
	}
	if err := s.store.InsertParticipant(ctx, participant); err != nil {
		if errors.Is(err, ErrDuplicateActiveParticipant) {
			return nil, ErrAlreadyQueued
		}
		return nil, fmt.Errorf("failed to insert participant: %w", err)
	}

	s.events.PublishSessionChanged(sessionID.Hex())
	log.Printf("Player %s joined session %s", userID, sessionID.Hex())
	return participant, nil
}

// Leave removes the player from the queue. An outstanding balance blocks the
// leave unless the player confirms they have paid; the override is trusted
// without verification and the ledger row stays open for the organizer.
func (s *QueueService) Leave(ctx context.Context, sessionID primitive.ObjectID, userID string, confirmedPaid bool) error {
	p, err := s.store.ActiveParticipant(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}
	if p == nil {
		return ErrNotFound
	}

	balance := p.OutstandingBalance()
	if p.GamesPlayed > 0 && balance > 0 && p.PaymentStatus != models.PaymentPaid && !confirmedPaid {
		return &PaymentRequiredError{AmountOwed: balance, GamesPlayed: p.GamesPlayed}
	}

	ok, err := s.store.MarkLeft(ctx, p.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark participant left: %w", err)
	}
	if !ok {
		return ErrConcurrentModification
	}

	s.events.PublishSessionChanged(sessionID.Hex())
	log.Printf("Player %s left session %s", userID, sessionID.Hex())
	return nil
}

// Position returns the player's 1-based place among waiting players, ordered
// by join time. Returns 0 when the player is not waiting (absent or playing).
func (s *QueueService) Position(ctx context.Context, sessionID primitive.ObjectID, userID string) (int, error) {
	p, err := s.store.ActiveParticipant(ctx, sessionID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load participant: %w", err)
	}
	if p == nil || p.Status != models.ParticipantWaiting {
		return 0, nil
	}

	ahead, err := s.store.CountWaitingBefore(ctx, sessionID, p.JoinedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue position: %w", err)
	}
	// ahead includes the player's own row (joinedAt <= joinedAt).
	return int(ahead), nil
}

// EstimatedWait converts a queue position into a rough wait duration.
func (s *QueueService) EstimatedWait(position int) time.Duration {
	if position <= 0 {
		return 0
	}
	return time.Duration(position) * s.slotWait
}
