package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/models"
	"rallio-queue/internal/notify"
)

// LedgerService handles organizer payment actions on participant rows.
type LedgerService struct {
	store    Store
	notifier Notifier
	events   EventPublisher
}

func NewLedgerService(store Store, notifier Notifier, events EventPublisher) *LedgerService {
	return &LedgerService{store: store, notifier: notifier, events: events}
}

// Settle records a payment against the participant's balance. The payment
// status is derived from cumulative amounts: settled >= owed means paid,
// anything above zero partial.
func (s *LedgerService) Settle(ctx context.Context, participantID primitive.ObjectID, requestedBy string, amount float64) (*models.Participant, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("settlement amount must be positive")
	}

	p, err := s.authorize(ctx, participantID, requestedBy)
	if err != nil {
		return nil, err
	}

	status := models.PaymentStatusFor(p.AmountSettled+amount, p.AmountOwed)
	ok, err := s.store.RecordSettlement(ctx, participantID, amount, status)
	if err != nil {
		return nil, fmt.Errorf("failed to record settlement: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentModification
	}

	s.notifier.NotifyPlayers([]string{p.UserID}, notify.PaymentRecorded(amount))
	s.events.PublishSessionChanged(p.SessionID.Hex())
	log.Printf("Settlement of %.2f recorded for player %s (status %s)", amount, p.UserID, status)

	return s.store.GetParticipant(ctx, participantID)
}

// MarkPaid records a full cash payment. Idempotent: marking an already paid
// row succeeds without change.
func (s *LedgerService) MarkPaid(ctx context.Context, participantID primitive.ObjectID, requestedBy string) error {
	p, err := s.authorize(ctx, participantID, requestedBy)
	if err != nil {
		return err
	}
	if p.PaymentStatus == models.PaymentPaid {
		return nil
	}

	ok, err := s.store.SettleInFull(ctx, participantID)
	if err != nil {
		return fmt.Errorf("failed to mark paid: %w", err)
	}
	if !ok {
		return ErrConcurrentModification
	}

	s.notifier.NotifyPlayers([]string{p.UserID}, notify.PaymentRecorded(p.OutstandingBalance()))
	s.events.PublishSessionChanged(p.SessionID.Hex())
	log.Printf("Player %s marked paid in full (%.2f)", p.UserID, p.AmountOwed)
	return nil
}

// WaiveFee zeroes the participant's balance.
func (s *LedgerService) WaiveFee(ctx context.Context, participantID primitive.ObjectID, requestedBy, reason string) error {
	p, err := s.authorize(ctx, participantID, requestedBy)
	if err != nil {
		return err
	}

	ok, err := s.store.WaiveBalance(ctx, participantID)
	if err != nil {
		return fmt.Errorf("failed to waive balance: %w", err)
	}
	if !ok {
		return ErrConcurrentModification
	}

	s.notifier.NotifyPlayers([]string{p.UserID}, notify.FeeWaived())
	s.events.PublishSessionChanged(p.SessionID.Hex())
	log.Printf("Balance of %.2f waived for player %s (reason: %s)", p.OutstandingBalance(), p.UserID, reason)
	return nil
}

// authorize loads the participant and checks the caller organizes its session.
func (s *LedgerService) authorize(ctx context.Context, participantID primitive.ObjectID, requestedBy string) (*models.Participant, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	session, err := s.store.GetSession(ctx, p.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if session.OrganizerID != requestedBy {
		return nil, ErrUnauthorized
	}
	return p, nil
}
