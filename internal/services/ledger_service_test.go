package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/models"
	"rallio-queue/internal/notify"
)

func seedDebtor(t *testing.T, f *fixture, sessionID primitive.ObjectID, userID string, owed float64, games int) models.Participant {
	t.Helper()
	p := f.addWaiting(t, sessionID, userID, time.Minute)
	f.store.mu.Lock()
	row := f.store.participants[p.ID]
	row.GamesPlayed = games
	row.AmountOwed = owed
	f.store.participants[p.ID] = row
	f.store.mu.Unlock()
	return f.participant(t, p.ID)
}

func TestSettlePartialThenPaid(t *testing.T) {
	f := newFixture()
	session := f.addSession(t, "org", models.ModeCasual, models.FormatDoubles, 5)
	p := seedDebtor(t, f, session.ID, "alice", 15, 3)

	got, err := f.ledger.Settle(context.Background(), p.ID, "org", 10)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got.AmountSettled != 10 || got.PaymentStatus != models.PaymentPartial {
		t.Errorf("after partial: settled=%.2f status=%s", got.AmountSettled, got.PaymentStatus)
	}
	if got.OutstandingBalance() != 5 {
		t.Errorf("outstanding = %.2f, want 5", got.OutstandingBalance())
	}

	got, err = f.ledger.Settle(context.Background(), p.ID, "org", 5)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got.PaymentStatus != models.PaymentPaid || got.OutstandingBalance() != 0 {
		t.Errorf("after full: status=%s outstanding=%.2f", got.PaymentStatus, got.OutstandingBalance())
	}

	if notes := f.notes.byKind(notify.KindPaymentRecorded); len(notes) != 2 {
		t.Errorf("payment notifications = %d, want 2", len(notes))
	}
}

func TestSettleValidation(t *testing.T) {
	f := newFixture()
	session := f.addSession(t, "org", models.ModeCasual, models.FormatDoubles, 5)
	p := seedDebtor(t, f, session.ID, "alice", 15, 3)

	if _, err := f.ledger.Settle(context.Background(), p.ID, "org", 0); err == nil {
		t.Error("zero amount accepted")
	}
	if _, err := f.ledger.Settle(context.Background(), p.ID, "alice", 5); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("settle by player: err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.ledger.Settle(context.Background(), primitive.NewObjectID(), "org", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("settle unknown row: err = %v, want ErrNotFound", err)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	f := newFixture()
	session := f.addSession(t, "org", models.ModeCasual, models.FormatDoubles, 5)
	p := seedDebtor(t, f, session.ID, "alice", 20, 4)

	if err := f.ledger.MarkPaid(context.Background(), p.ID, "org"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	row := f.participant(t, p.ID)
	if row.PaymentStatus != models.PaymentPaid || row.AmountSettled != 20 {
		t.Errorf("after mark paid: status=%s settled=%.2f", row.PaymentStatus, row.AmountSettled)
	}

	// A second call is a no-op, not an error, and sends nothing.
	before := len(f.notes.byKind(notify.KindPaymentRecorded))
	if err := f.ledger.MarkPaid(context.Background(), p.ID, "org"); err != nil {
		t.Fatalf("mark paid again: %v", err)
	}
	if after := len(f.notes.byKind(notify.KindPaymentRecorded)); after != before {
		t.Errorf("repeat mark-paid notified again: %d -> %d", before, after)
	}
}

func TestWaiveFee(t *testing.T) {
	f := newFixture()
	session := f.addSession(t, "org", models.ModeCasual, models.FormatDoubles, 5)
	p := seedDebtor(t, f, session.ID, "alice", 10, 2)

	if err := f.ledger.WaiveFee(context.Background(), p.ID, "alice", "friend"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("waive by player: err = %v, want ErrUnauthorized", err)
	}

	if err := f.ledger.WaiveFee(context.Background(), p.ID, "org", "equipment issue"); err != nil {
		t.Fatalf("waive: %v", err)
	}
	row := f.participant(t, p.ID)
	if row.AmountOwed != 0 || row.PaymentStatus != models.PaymentPaid {
		t.Errorf("after waive: owed=%.2f status=%s", row.AmountOwed, row.PaymentStatus)
	}
	if notes := f.notes.byKind(notify.KindFeeWaived); len(notes) != 1 {
		t.Errorf("fee-waived notifications = %d, want 1", len(notes))
	}

	// A waived player can now leave freely.
	if err := f.queue.Leave(context.Background(), session.ID, "alice", false); err != nil {
		t.Fatalf("leave after waive: %v", err)
	}
}
