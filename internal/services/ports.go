package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/models"
	"rallio-queue/internal/notify"
)

// ErrDuplicateActiveParticipant is returned by InsertParticipant when the
// unique active-membership constraint rejects the row.
var ErrDuplicateActiveParticipant = errors.New("player already has an active participant row")

// PlayerOutcome is one player's delta from a completed match. Rating and
// SkillLevel are nil when the match does not move them (casual mode, draws,
// suppressed tier jumps).
type PlayerOutcome struct {
	Won        bool
	Draw       bool
	Rating     *float64
	SkillLevel *int
}

// SessionStore persists queue sessions.
type SessionStore interface {
	InsertSession(ctx context.Context, session *models.QueueSession) error
	GetSession(ctx context.Context, id primitive.ObjectID) (*models.QueueSession, error)
	// UpdateSessionStatus flips status only when the current status is one of
	// from. Returns false when no document matched.
	UpdateSessionStatus(ctx context.Context, id primitive.ObjectID, from []models.SessionStatus, to models.SessionStatus) (bool, error)
	// CloseSession marks the session closed and stores its totals, guarded on
	// a non-closed status.
	CloseSession(ctx context.Context, id primitive.ObjectID, totals *models.SessionTotals) (bool, error)
	ListSessionsByOrganizer(ctx context.Context, organizerID string) ([]models.QueueSession, error)
	// ExpiredSessions returns non-closed sessions whose end time passed.
	ExpiredSessions(ctx context.Context, now time.Time) ([]models.QueueSession, error)
}

// ParticipantStore persists queue membership and the per-session ledger.
type ParticipantStore interface {
	InsertParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, id primitive.ObjectID) (*models.Participant, error)
	// ActiveParticipant returns the live row (leftAt unset), nil when absent.
	ActiveParticipant(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error)
	// LatestParticipant returns the most recent row regardless of state.
	LatestParticipant(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error)
	// ReactivateParticipant clears leftAt and resets the row to waiting,
	// guarded on leftAt being set. Returns false when the guard failed.
	ReactivateParticipant(ctx context.Context, id primitive.ObjectID, rejoinedAt time.Time) (bool, error)
	// MarkLeft closes the row, guarded on it being active.
	MarkLeft(ctx context.Context, id primitive.ObjectID, leftAt time.Time) (bool, error)
	// WaitingParticipants returns up to limit active waiting rows ordered by
	// joinedAt ascending; limit <= 0 means all.
	WaitingParticipants(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.Participant, error)
	// CountWaitingBefore counts active waiting rows with joinedAt <= the
	// given time (queue position support).
	CountWaitingBefore(ctx context.Context, sessionID primitive.ObjectID, joinedAt time.Time) (int64, error)
	ListParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]models.Participant, error)
	ListActiveParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]models.Participant, error)
	// MarkPlaying flips the given rows waiting→playing, guarded per row on
	// status waiting. Returns the number actually flipped.
	MarkPlaying(ctx context.Context, ids []primitive.ObjectID) (int64, error)
	// MarkWaiting reverts the given players' active rows playing→waiting
	// without touching joinedAt.
	MarkWaiting(ctx context.Context, sessionID primitive.ObjectID, userIDs []string) error
	// ApplyMatchCharge increments the ledger for one completed game: games
	// played, games won for winners, amount owed, derived payment status,
	// and reverts the row to waiting. Returns false when the player no
	// longer has an active row (they left mid-match).
	ApplyMatchCharge(ctx context.Context, sessionID primitive.ObjectID, userID string, won bool, cost float64) (bool, error)
	// RecordSettlement adds amount to the settled total and stores the
	// derived payment status.
	RecordSettlement(ctx context.Context, id primitive.ObjectID, amount float64, status models.PaymentStatus) (bool, error)
	// SettleInFull marks the row fully paid (settled = owed).
	SettleInFull(ctx context.Context, id primitive.ObjectID) (bool, error)
	// WaiveBalance zeroes the owed amount and marks the row paid.
	WaiveBalance(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// MatchStore persists matches.
type MatchStore interface {
	InsertMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id primitive.ObjectID) (*models.Match, error)
	CountMatches(ctx context.Context, sessionID primitive.ObjectID) (int64, error)
	// StartMatch flips scheduled→in_progress. Returns false when the match
	// was not scheduled.
	StartMatch(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	// CompleteMatch records scores and winner, guarded on in_progress.
	CompleteMatch(ctx context.Context, id primitive.ObjectID, scoreA, scoreB int, winner models.MatchWinner, at time.Time) (bool, error)
	// CancelMatch flips scheduled or in_progress to cancelled.
	CancelMatch(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	// ActiveMatchForPlayer returns the player's most recent scheduled or
	// in-progress match, nil when none.
	ActiveMatchForPlayer(ctx context.Context, userID string) (*models.Match, error)
	ListMatches(ctx context.Context, sessionID primitive.ObjectID) ([]models.Match, error)
}

// PlayerStore persists cross-session player ratings.
type PlayerStore interface {
	// PlayersByUserIDs returns rating records keyed by userID; missing
	// players are simply absent from the map.
	PlayersByUserIDs(ctx context.Context, userIDs []string) (map[string]models.PlayerRating, error)
	// ApplyPlayerOutcome upserts the player record with one match outcome.
	ApplyPlayerOutcome(ctx context.Context, userID string, outcome PlayerOutcome) error
	// SeedPlayer creates the player record with a declared skill level and
	// its seed rating. Returns false when a record already exists.
	SeedPlayer(ctx context.Context, userID string, skillLevel int, rating float64) (bool, error)
	// SetSkillLevel updates an existing record's declared skill level and
	// stamps the change time. Returns false when no record matched.
	SetSkillLevel(ctx context.Context, userID string, skillLevel int, at time.Time) (bool, error)
	TopPlayers(ctx context.Context, limit int) ([]models.PlayerRating, error)
}

// LockStore provides coarse cross-instance locks for background sweeps.
type LockStore interface {
	TryAcquireLock(ctx context.Context, name string, ttl time.Duration) bool
	ReleaseLock(ctx context.Context, name string)
}

// Store is the full persistence surface the services need.
type Store interface {
	SessionStore
	ParticipantStore
	MatchStore
	PlayerStore
	LockStore

	// WithTransaction runs fn inside a single multi-document transaction.
	// Any error aborts the whole transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers in-app messages to players. Implementations are
// fire-and-forget: delivery failure never fails a mutation.
type Notifier interface {
	NotifyPlayers(userIDs []string, msg notify.Message)
}

// EventPublisher pushes "something changed, re-fetch" signals to watchers of
// a session, locally and across instances.
type EventPublisher interface {
	PublishSessionChanged(sessionID string)
}
