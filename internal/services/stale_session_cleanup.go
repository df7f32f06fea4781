package services

import (
	"context"
	"log"
	"time"
)

const staleSessionLock = "stale_session_cleanup"

// StaleSessionCleanupService periodically closes sessions whose end time
// passed without the organizer closing them (crashed client, forgotten tab).
// A Mongo lock keeps multiple instances from sweeping at once.
type StaleSessionCleanupService struct {
	store    Store
	sessions *SessionService
	stopCh   chan struct{}
	interval time.Duration
	grace    time.Duration
}

func NewStaleSessionCleanupService(store Store, sessions *SessionService) *StaleSessionCleanupService {
	return &StaleSessionCleanupService{
		store:    store,
		sessions: sessions,
		stopCh:   make(chan struct{}),
		interval: 5 * time.Minute,
		grace:    15 * time.Minute,
	}
}

// Start begins the periodic sweep in a background goroutine.
func (s *StaleSessionCleanupService) Start() {
	go s.runLoop()
	log.Println("Stale session cleanup service started (interval: 5m, grace: 15m)")
}

// Stop signals the sweep loop to exit.
func (s *StaleSessionCleanupService) Stop() {
	close(s.stopCh)
	log.Println("Stale session cleanup service stopped")
}

func (s *StaleSessionCleanupService) runLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runPass()
		}
	}
}

func (s *StaleSessionCleanupService) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if !s.store.TryAcquireLock(ctx, staleSessionLock, 5*time.Minute) {
		// Another instance is sweeping.
		return
	}
	defer s.store.ReleaseLock(ctx, staleSessionLock)

	cutoff := time.Now().Add(-s.grace)
	sessions, err := s.store.ExpiredSessions(ctx, cutoff)
	if err != nil {
		log.Printf("Stale session cleanup: failed to query expired sessions: %v", err)
		return
	}
	if len(sessions) == 0 {
		return
	}

	log.Printf("Stale session cleanup: found %d expired session(s)", len(sessions))
	for i := range sessions {
		session := &sessions[i]
		if _, err := s.sessions.closeSession(ctx, session, "system"); err != nil {
			if err == ErrConcurrentModification {
				continue
			}
			log.Printf("Stale session cleanup: failed to close session %s: %v", session.ID.Hex(), err)
		}
	}
}
