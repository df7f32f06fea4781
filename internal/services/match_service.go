package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/models"
	"rallio-queue/internal/notify"
	"rallio-queue/internal/teams"
)

// MatchService drives the match state machine:
// scheduled → in_progress → completed, with cancelled reachable from the
// first two states.
type MatchService struct {
	store      Store
	completion *CompletionService
	notifier   Notifier
	events     EventPublisher
}

func NewMatchService(store Store, completion *CompletionService, notifier Notifier, events EventPublisher) *MatchService {
	return &MatchService{
		store:      store,
		completion: completion,
		notifier:   notifier,
		events:     events,
	}
}

// Assign pulls the top waiting players off the queue, balances them into two
// teams and creates a scheduled match. Organizer only. matchSize <= 0 uses
// the session's game format default. The match insert and the waiting→playing
// flips are one transaction: if any player was grabbed concurrently, nothing
// is applied.
func (s *MatchService) Assign(ctx context.Context, sessionID primitive.ObjectID, requestedBy string, matchSize int) (*models.Match, error) {
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
	if !session.Joinable() {
		return nil, ErrSessionClosed
	}

	if matchSize <= 0 {
		matchSize = session.GameFormat.PlayersPerMatch()
	}

	var match *models.Match
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		waiting, err := s.store.WaitingParticipants(ctx, sessionID, matchSize)
		if err != nil {
			return fmt.Errorf("failed to load waiting players: %w", err)
		}
		if len(waiting) < matchSize {
			return ErrInsufficientPlayers
		}

		var skills map[string]int
		if session.Mode == models.ModeCompetitive {
			ids := make([]string, len(waiting))
			for i, p := range waiting {
				ids[i] = p.UserID
			}
			players, err := s.store.PlayersByUserIDs(ctx, ids)
			if err != nil {
				return fmt.Errorf("failed to load player skills: %w", err)
			}
			skills = make(map[string]int, len(players))
			for id, p := range players {
				skills[id] = p.SkillLevel
			}
		}

		teamA, teamB, err := teams.Split(waiting, skills, matchSize, session.Mode)
		if err != nil {
			return err
		}

		count, err := s.store.CountMatches(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to count matches: %w", err)
		}

		now := time.Now()
		match = &models.Match{
			ID:          primitive.NewObjectID(),
			SessionID:   sessionID,
			CourtID:     session.CourtID,
			MatchNumber: int(count) + 1,
			GameFormat:  session.GameFormat,
			TeamA:       teamA,
			TeamB:       teamB,
			Status:      models.MatchScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.InsertMatch(ctx, match); err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}

		ids := make([]primitive.ObjectID, 0, matchSize)
		for _, p := range waiting {
			if match.HasPlayer(p.UserID) {
				ids = append(ids, p.ID)
			}
		}
		flipped, err := s.store.MarkPlaying(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to mark players playing: %w", err)
		}
		if flipped != int64(len(ids)) {
			// Someone left or was assigned elsewhere between read and write.
			return ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyPlayers(match.Players(), notify.MatchAssigned(match.MatchNumber, match.CourtID, match.ID.Hex()))
	s.events.PublishSessionChanged(sessionID.Hex())
	log.Printf("Match #%d assigned in session %s: %v vs %v", match.MatchNumber, sessionID.Hex(), match.TeamA, match.TeamB)
	return match, nil
}

// Start moves a scheduled match to in_progress. The organizer or any assigned
// player may start it.
func (s *MatchService) Start(ctx context.Context, matchID primitive.ObjectID, requestedBy string) error {
	match, session, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if session.OrganizerID != requestedBy && !match.HasPlayer(requestedBy) {
		return ErrUnauthorized
	}

	ok, err := s.store.StartMatch(ctx, matchID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to start match: %w", err)
	}
	if !ok {
		return s.transitionError(ctx, matchID, "start")
	}

	s.events.PublishSessionChanged(match.SessionID.Hex())
	log.Printf("Match #%d started in session %s", match.MatchNumber, match.SessionID.Hex())
	return nil
}

// RecordScore completes an in-progress match. Organizer only. The status
// flip, the scores, the per-player ledger charges and the rating updates are
// one transaction; recording the same match twice fails on the status guard.
func (s *MatchService) RecordScore(ctx context.Context, matchID primitive.ObjectID, requestedBy string, scoreA, scoreB int, winner models.MatchWinner) error {
	match, session, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if session.OrganizerID != requestedBy {
		return ErrUnauthorized
	}
	if !models.IsValidWinner(string(winner)) {
		return fmt.Errorf("invalid winner %q", winner)
	}
	if match.Status != models.MatchInProgress {
		return &InvalidTransitionError{Status: match.Status, Action: "record score"}
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.store.CompleteMatch(ctx, matchID, scoreA, scoreB, winner, time.Now())
		if err != nil {
			return fmt.Errorf("failed to complete match: %w", err)
		}
		if !ok {
			return s.transitionError(ctx, matchID, "record score")
		}
		return s.completion.ProcessMatchCompletion(ctx, session, match, winner)
	})
	if err != nil {
		return err
	}

	s.events.PublishSessionChanged(match.SessionID.Hex())
	return nil
}

// Cancel aborts a scheduled or in-progress match and returns its players to
// the queue. No ledger effect.
func (s *MatchService) Cancel(ctx context.Context, matchID primitive.ObjectID, requestedBy string) error {
	match, session, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if session.OrganizerID != requestedBy {
		return ErrUnauthorized
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.store.CancelMatch(ctx, matchID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to cancel match: %w", err)
		}
		if !ok {
			return s.transitionError(ctx, matchID, "cancel")
		}
		return s.store.MarkWaiting(ctx, match.SessionID, match.Players())
	})
	if err != nil {
		return err
	}

	s.events.PublishSessionChanged(match.SessionID.Hex())
	log.Printf("Match #%d cancelled in session %s", match.MatchNumber, match.SessionID.Hex())
	return nil
}

// ActiveMatch returns the player's current scheduled or in-progress match,
// nil when they are not assigned anywhere.
func (s *MatchService) ActiveMatch(ctx context.Context, userID string) (*models.Match, error) {
	match, err := s.store.ActiveMatchForPlayer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active match: %w", err)
	}
	return match, nil
}

func (s *MatchService) loadMatch(ctx context.Context, matchID primitive.ObjectID) (*models.Match, *models.QueueSession, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load match: %w", err)
	}
	if match == nil {
		return nil, nil, ErrNotFound
	}
	session, err := s.store.GetSession(ctx, match.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil, ErrNotFound
	}
	return match, session, nil
}

// transitionError re-reads the match to report which state blocked the action.
func (s *MatchService) transitionError(ctx context.Context, matchID primitive.ObjectID, action string) error {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil || match == nil {
		return ErrConcurrentModification
	}
	return &InvalidTransitionError{Status: match.Status, Action: action}
}
