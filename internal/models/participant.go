package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ParticipantStatus string

const (
	ParticipantWaiting ParticipantStatus = "waiting"
	ParticipantPlaying ParticipantStatus = "playing"
	ParticipantLeft    ParticipantStatus = "left"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Participant is one player's membership row in a queue session. A player has
// at most one active row per session (leftAt == nil); closed rows are kept for
// the ledger history.
type Participant struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SessionID     primitive.ObjectID `json:"sessionId" bson:"sessionId"`
	UserID        string             `json:"userId" bson:"userId"`
	Status        ParticipantStatus  `json:"status" bson:"status"`
	GamesPlayed   int                `json:"gamesPlayed" bson:"gamesPlayed"`
	GamesWon      int                `json:"gamesWon" bson:"gamesWon"`
	AmountOwed    float64            `json:"amountOwed" bson:"amountOwed"`
	AmountSettled float64            `json:"amountSettled" bson:"amountSettled"`
	PaymentStatus PaymentStatus      `json:"paymentStatus" bson:"paymentStatus"`
	JoinedAt      time.Time          `json:"joinedAt" bson:"joinedAt"`
	LeftAt        *time.Time         `json:"leftAt,omitempty" bson:"leftAt,omitempty"`
}

// Active reports whether the row is the player's live membership.
func (p *Participant) Active() bool {
	return p.LeftAt == nil
}

// OutstandingBalance is what the player still owes, never negative.
func (p *Participant) OutstandingBalance() float64 {
	bal := p.AmountOwed - p.AmountSettled
	if bal < 0 {
		return 0
	}
	return bal
}

// PaymentStatusFor derives the payment status from cumulative amounts.
func PaymentStatusFor(settled, owed float64) PaymentStatus {
	switch {
	case settled >= owed:
		return PaymentPaid
	case settled > 0:
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}
