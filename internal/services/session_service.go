package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/models"
	"rallio-queue/internal/notify"
)

// CreateSessionInput carries the organizer's session parameters.
type CreateSessionInput struct {
	CourtID     string
	OrganizerID string
	Mode        models.SessionMode
	GameFormat  models.GameFormat
	MaxPlayers  int
	CostPerGame float64
	StartTime   time.Time
	EndTime     time.Time
}

// SessionSummary is the organizer's aggregate view of one session.
type SessionSummary struct {
	Session      *models.QueueSession `json:"session"`
	Participants []ParticipantSummary `json:"participants"`
	Matches      []models.Match       `json:"matches"`
	Totals       models.SessionTotals `json:"totals"`
}

// ParticipantSummary is one ledger row plus live queue position.
type ParticipantSummary struct {
	Participant models.Participant `json:"participant"`
	Position    int                `json:"position,omitempty"`
}

// SessionService owns the session lifecycle: create, pause/resume, close-out.
type SessionService struct {
	store    Store
	notifier Notifier
	events   EventPublisher
}

func NewSessionService(store Store, notifier Notifier, events EventPublisher) *SessionService {
	return &SessionService{store: store, notifier: notifier, events: events}
}

// Create opens a new queue session for a court time window.
func (s *SessionService) Create(ctx context.Context, input CreateSessionInput) (*models.QueueSession, error) {
	if input.CourtID == "" || input.OrganizerID == "" {
		return nil, fmt.Errorf("courtId and organizerId are required")
	}
	if input.Mode != models.ModeCasual && input.Mode != models.ModeCompetitive {
		return nil, fmt.Errorf("invalid session mode %q", input.Mode)
	}
	if !models.IsValidGameFormat(string(input.GameFormat)) {
		return nil, fmt.Errorf("invalid game format %q", input.GameFormat)
	}
	if input.CostPerGame < 0 {
		return nil, fmt.Errorf("costPerGame cannot be negative")
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("endTime must be after startTime")
	}

	now := time.Now()
	session := &models.QueueSession{
		ID:          primitive.NewObjectID(),
		CourtID:     input.CourtID,
		OrganizerID: input.OrganizerID,
		Mode:        input.Mode,
		GameFormat:  input.GameFormat,
		MaxPlayers:  input.MaxPlayers,
		CostPerGame: input.CostPerGame,
		Status:      models.SessionStatusOpen,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("Session %s created for court %s (%s/%s)", session.ID.Hex(), session.CourtID, session.Mode, session.GameFormat)
	return session, nil
}

// Pause stops the queue from accepting joins and match assignments.
func (s *SessionService) Pause(ctx context.Context, sessionID primitive.ObjectID, requestedBy string) error {
	return s.transition(ctx, sessionID, requestedBy,
		[]models.SessionStatus{models.SessionStatusOpen, models.SessionStatusActive},
		models.SessionStatusPaused)
}

// Resume re-opens a paused session.
func (s *SessionService) Resume(ctx context.Context, sessionID primitive.ObjectID, requestedBy string) error {
	return s.transition(ctx, sessionID, requestedBy,
		[]models.SessionStatus{models.SessionStatusPaused},
		models.SessionStatusActive)
}

func (s *SessionService) transition(ctx context.Context, sessionID primitive.ObjectID, requestedBy string, from []models.SessionStatus, to models.SessionStatus) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}
	if session.OrganizerID != requestedBy {
		return ErrUnauthorized
	}

	ok, err := s.store.UpdateSessionStatus(ctx, sessionID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if !ok {
		return ErrConcurrentModification
	}

	s.events.PublishSessionChanged(sessionID.Hex())
	return nil
}

// Close ends the session, stores the close-out totals and notifies everyone
// still in the queue.
func (s *SessionService) Close(ctx context.Context, sessionID primitive.ObjectID, requestedBy string) (*models.SessionTotals, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if session.OrganizerID != requestedBy {
		return nil, ErrUnauthorized
	}

	return s.closeSession(ctx, session, requestedBy)
}

// closeSession is shared by the organizer close and the stale-session sweep.
func (s *SessionService) closeSession(ctx context.Context, session *models.QueueSession, closedBy string) (*models.SessionTotals, error) {
	participants, err := s.store.ListParticipants(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	totals := computeTotals(participants, closedBy)

	ok, err := s.store.CloseSession(ctx, session.ID, totals)
	if err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	if !ok {
		// Already closed by someone else.
		return nil, ErrConcurrentModification
	}

	var active []string
	for _, p := range participants {
		if p.Active() {
			active = append(active, p.UserID)
		}
	}
	s.notifier.NotifyPlayers(active, notify.SessionEnded(session.ID.Hex()))
	s.events.PublishSessionChanged(session.ID.Hex())

	log.Printf("Session %s closed: %d game(s), %.2f revenue, %d participant(s), %d unpaid",
		session.ID.Hex(), totals.TotalGames, totals.TotalRevenue, totals.TotalParticipants, totals.UnpaidBalances)
	return totals, nil
}

func computeTotals(participants []models.Participant, closedBy string) *models.SessionTotals {
	totals := &models.SessionTotals{
		ClosedAt: time.Now(),
		ClosedBy: closedBy,
	}
	for _, p := range participants {
		totals.TotalParticipants++
		totals.TotalGames += p.GamesPlayed
		totals.TotalRevenue += p.AmountOwed
		if p.OutstandingBalance() > 0 {
			totals.UnpaidBalances++
		}
	}
	return totals
}

// Summary returns the organizer's aggregate view: the session, every ledger
// row with live queue positions, and the match list.
func (s *SessionService) Summary(ctx context.Context, sessionID primitive.ObjectID, requestedBy string) (*SessionSummary, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}
	if session.OrganizerID != requestedBy {
		return nil, ErrUnauthorized
	}

	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	matches, err := s.store.ListMatches(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	summary := &SessionSummary{
		Session: session,
		Matches: matches,
		Totals:  *computeTotals(participants, requestedBy),
	}
	for _, p := range participants {
		entry := ParticipantSummary{Participant: p}
		if p.Active() && p.Status == models.ParticipantWaiting {
			ahead, err := s.store.CountWaitingBefore(ctx, sessionID, p.JoinedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to count queue position: %w", err)
			}
			entry.Position = int(ahead)
		}
		summary.Participants = append(summary.Participants, entry)
	}
	return summary, nil
}

// RemoveParticipant is the organizer kick: the player's active row is closed
// and they are notified. A player in an active match cannot be removed until
// the match is completed or cancelled.
func (s *SessionService) RemoveParticipant(ctx context.Context, sessionID primitive.ObjectID, requestedBy, userID string) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}
	if session.OrganizerID != requestedBy {
		return ErrUnauthorized
	}

	p, err := s.store.ActiveParticipant(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}
	if p == nil {
		return ErrNotFound
	}
	if p.Status == models.ParticipantPlaying {
		return ErrPlayerInMatch
	}

	ok, err := s.store.MarkLeft(ctx, p.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	if !ok {
		return ErrConcurrentModification
	}

	s.notifier.NotifyPlayers([]string{userID}, notify.RemovedFromQueue(sessionID.Hex()))
	s.events.PublishSessionChanged(sessionID.Hex())
	log.Printf("Organizer %s removed player %s from session %s", requestedBy, userID, sessionID.Hex())
	return nil
}

// ListByOrganizer returns the organizer's sessions, newest first.
func (s *SessionService) ListByOrganizer(ctx context.Context, organizerID string) ([]models.QueueSession, error) {
	sessions, err := s.store.ListSessionsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
