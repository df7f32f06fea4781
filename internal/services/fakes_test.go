package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/elo"
	"rallio-queue/internal/models"
	"rallio-queue/internal/notify"
)

// fakeStore is an in-memory Store with the same guard semantics as the Mongo
// implementation: conditional updates report whether they matched, and
// WithTransaction restores the previous state when the callback errors.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[primitive.ObjectID]models.QueueSession
	participants map[primitive.ObjectID]models.Participant
	matches      map[primitive.ObjectID]models.Match
	players      map[string]models.PlayerRating
	locks        map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:     make(map[primitive.ObjectID]models.QueueSession),
		participants: make(map[primitive.ObjectID]models.Participant),
		matches:      make(map[primitive.ObjectID]models.Match),
		players:      make(map[string]models.PlayerRating),
		locks:        make(map[string]time.Time),
	}
}

func (s *fakeStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	sessions := copyMap(s.sessions)
	participants := copyMap(s.participants)
	matches := copyMap(s.matches)
	players := copyMap(s.players)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.sessions = sessions
		s.participants = participants
		s.matches = matches
		s.players = players
		s.mu.Unlock()
		return err
	}
	return nil
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *fakeStore) InsertSession(ctx context.Context, session *models.QueueSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *fakeStore) GetSession(ctx context.Context, id primitive.ObjectID) (*models.QueueSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return &session, nil
	}
	return nil, nil
}

func (s *fakeStore) UpdateSessionStatus(ctx context.Context, id primitive.ObjectID, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if session.Status == status {
			session.Status = to
			session.UpdatedAt = time.Now()
			s.sessions[id] = session
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CloseSession(ctx context.Context, id primitive.ObjectID, totals *models.SessionTotals) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.Status == models.SessionStatusClosed {
		return false, nil
	}
	session.Status = models.SessionStatusClosed
	session.Totals = totals
	s.sessions[id] = session
	return true, nil
}

func (s *fakeStore) ListSessionsByOrganizer(ctx context.Context, organizerID string) ([]models.QueueSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueSession
	for _, session := range s.sessions {
		if session.OrganizerID == organizerID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) ExpiredSessions(ctx context.Context, now time.Time) ([]models.QueueSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueSession
	for _, session := range s.sessions {
		if session.Status != models.SessionStatusClosed && session.EndTime.Before(now) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertParticipant(ctx context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if existing.SessionID == p.SessionID && existing.UserID == p.UserID && existing.LeftAt == nil {
			return ErrDuplicateActiveParticipant
		}
	}
	s.participants[p.ID] = *p
	return nil
}

func (s *fakeStore) GetParticipant(ctx context.Context, id primitive.ObjectID) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.participants[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *fakeStore) ActiveParticipant(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.SessionID == sessionID && p.UserID == userID && p.LeftAt == nil {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LatestParticipant(ctx context.Context, sessionID primitive.ObjectID, userID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Participant
	for _, p := range s.participants {
		if p.SessionID != sessionID || p.UserID != userID {
			continue
		}
		p := p
		if latest == nil || p.JoinedAt.After(latest.JoinedAt) {
			latest = &p
		}
	}
	return latest, nil
}

func (s *fakeStore) ReactivateParticipant(ctx context.Context, id primitive.ObjectID, rejoinedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok || p.LeftAt == nil {
		return false, nil
	}
	p.LeftAt = nil
	p.Status = models.ParticipantWaiting
	p.JoinedAt = rejoinedAt
	s.participants[id] = p
	return true, nil
}

func (s *fakeStore) MarkLeft(ctx context.Context, id primitive.ObjectID, leftAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok || p.LeftAt != nil {
		return false, nil
	}
	p.Status = models.ParticipantLeft
	p.LeftAt = &leftAt
	s.participants[id] = p
	return true, nil
}

func (s *fakeStore) WaitingParticipants(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for _, p := range s.participants {
		if p.SessionID == sessionID && p.LeftAt == nil && p.Status == models.ParticipantWaiting {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CountWaitingBefore(ctx context.Context, sessionID primitive.ObjectID, joinedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, p := range s.participants {
		if p.SessionID == sessionID && p.LeftAt == nil && p.Status == models.ParticipantWaiting && !p.JoinedAt.After(joinedAt) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) ListParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participant
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *fakeStore) ListActiveParticipants(ctx context.Context, sessionID primitive.ObjectID) ([]models.Participant, error) {
	all, _ := s.ListParticipants(ctx, sessionID)
	var out []models.Participant
	for _, p := range all {
		if p.LeftAt == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPlaying(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped int64
	for _, id := range ids {
		p, ok := s.participants[id]
		if !ok || p.LeftAt != nil || p.Status != models.ParticipantWaiting {
			continue
		}
		p.Status = models.ParticipantPlaying
		s.participants[id] = p
		flipped++
	}
	return flipped, nil
}

func (s *fakeStore) MarkWaiting(ctx context.Context, sessionID primitive.ObjectID, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.participants {
		if p.SessionID != sessionID || p.LeftAt != nil || p.Status != models.ParticipantPlaying {
			continue
		}
		for _, userID := range userIDs {
			if p.UserID == userID {
				p.Status = models.ParticipantWaiting
				s.participants[id] = p
				break
			}
		}
	}
	return nil
}

func (s *fakeStore) ApplyMatchCharge(ctx context.Context, sessionID primitive.ObjectID, userID string, won bool, cost float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.participants {
		if p.SessionID != sessionID || p.UserID != userID || p.LeftAt != nil {
			continue
		}
		p.GamesPlayed++
		if won {
			p.GamesWon++
		}
		p.AmountOwed += cost
		p.Status = models.ParticipantWaiting
		p.PaymentStatus = models.PaymentStatusFor(p.AmountSettled, p.AmountOwed)
		s.participants[id] = p
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) RecordSettlement(ctx context.Context, id primitive.ObjectID, amount float64, status models.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return false, nil
	}
	p.AmountSettled += amount
	p.PaymentStatus = status
	s.participants[id] = p
	return true, nil
}

func (s *fakeStore) SettleInFull(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return false, nil
	}
	p.AmountSettled = p.AmountOwed
	p.PaymentStatus = models.PaymentPaid
	s.participants[id] = p
	return true, nil
}

func (s *fakeStore) WaiveBalance(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return false, nil
	}
	p.AmountOwed = 0
	p.AmountSettled = 0
	p.PaymentStatus = models.PaymentPaid
	s.participants[id] = p
	return true, nil
}

func (s *fakeStore) InsertMatch(ctx context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = *m
	return nil
}

func (s *fakeStore) GetMatch(ctx context.Context, id primitive.ObjectID) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[id]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *fakeStore) CountMatches(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, m := range s.matches {
		if m.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) StartMatch(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchScheduled {
		return false, nil
	}
	m.Status = models.MatchInProgress
	m.StartedAt = &at
	m.UpdatedAt = at
	s.matches[id] = m
	return true, nil
}

func (s *fakeStore) CompleteMatch(ctx context.Context, id primitive.ObjectID, scoreA, scoreB int, winner models.MatchWinner, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchInProgress {
		return false, nil
	}
	m.Status = models.MatchCompleted
	m.ScoreA = &scoreA
	m.ScoreB = &scoreB
	m.Winner = winner
	m.CompletedAt = &at
	m.UpdatedAt = at
	s.matches[id] = m
	return true, nil
}

func (s *fakeStore) CancelMatch(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || (m.Status != models.MatchScheduled && m.Status != models.MatchInProgress) {
		return false, nil
	}
	m.Status = models.MatchCancelled
	m.UpdatedAt = at
	s.matches[id] = m
	return true, nil
}

func (s *fakeStore) ActiveMatchForPlayer(ctx context.Context, userID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Match
	for _, m := range s.matches {
		if m.Status != models.MatchScheduled && m.Status != models.MatchInProgress {
			continue
		}
		if !m.HasPlayer(userID) {
			continue
		}
		m := m
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = &m
		}
	}
	return latest, nil
}

func (s *fakeStore) ListMatches(ctx context.Context, sessionID primitive.ObjectID) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out, nil
}

func (s *fakeStore) PlayersByUserIDs(ctx context.Context, userIDs []string) (map[string]models.PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.PlayerRating)
	for _, id := range userIDs {
		if p, ok := s.players[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyPlayerOutcome(ctx context.Context, userID string, outcome PlayerOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[userID]
	if !ok {
		p = models.PlayerRating{
			UserID:     userID,
			Rating:     models.DefaultRating,
			SkillLevel: models.DefaultSkillLevel,
			CreatedAt:  time.Now(),
		}
	}
	p.GamesPlayed++
	switch {
	case outcome.Draw:
		p.Draws++
	case outcome.Won:
		p.Wins++
	default:
		p.Losses++
	}
	if outcome.Rating != nil {
		p.Rating = *outcome.Rating
	}
	if outcome.SkillLevel != nil {
		p.SkillLevel = *outcome.SkillLevel
		now := time.Now()
		p.SkillLevelUpdatedAt = &now
	}
	p.UpdatedAt = time.Now()
	s.players[userID] = p
	return nil
}

func (s *fakeStore) SeedPlayer(ctx context.Context, userID string, skillLevel int, rating float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[userID]; ok {
		return false, nil
	}
	now := time.Now()
	s.players[userID] = models.PlayerRating{
		UserID:     userID,
		Rating:     rating,
		SkillLevel: skillLevel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return true, nil
}

func (s *fakeStore) SetSkillLevel(ctx context.Context, userID string, skillLevel int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[userID]
	if !ok {
		return false, nil
	}
	p.SkillLevel = skillLevel
	p.SkillLevelUpdatedAt = &at
	p.UpdatedAt = at
	s.players[userID] = p
	return true, nil
}

func (s *fakeStore) TopPlayers(ctx context.Context, limit int) ([]models.PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PlayerRating
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) TryAcquireLock(ctx context.Context, name string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, ok := s.locks[name]; ok && until.After(time.Now()) {
		return false
	}
	s.locks[name] = time.Now().Add(ttl)
	return true
}

func (s *fakeStore) ReleaseLock(ctx context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[name] = time.Now()
}

// eventRecorder captures published session-changed signals.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) PublishSessionChanged(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sessionID)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// noteRecorder captures notification fan-outs.
type noteRecorder struct {
	mu    sync.Mutex
	notes []sentNote
}

type sentNote struct {
	userIDs []string
	msg     notify.Message
}

func (r *noteRecorder) NotifyPlayers(userIDs []string, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, sentNote{userIDs: userIDs, msg: msg})
}

func (r *noteRecorder) byKind(kind string) []sentNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNote
	for _, n := range r.notes {
		if n.msg.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// fixture wires every service against the shared fake store.
type fixture struct {
	store    *fakeStore
	events   *eventRecorder
	notes    *noteRecorder
	queue    *QueueService
	sessions *SessionService
	matches  *MatchService
	ledger   *LedgerService
	players  *PlayerService
}

func newFixture() *fixture {
	store := newFakeStore()
	events := &eventRecorder{}
	notes := &noteRecorder{}
	completion := NewCompletionService(store, elo.NewCalculator())
	return &fixture{
		store:    store,
		events:   events,
		notes:    notes,
		queue:    NewQueueService(store, events, 5*time.Minute, 15*time.Minute),
		sessions: NewSessionService(store, notes, events),
		matches:  NewMatchService(store, completion, notes, events),
		ledger:   NewLedgerService(store, notes, events),
		players:  NewPlayerService(store),
	}
}

func (f *fixture) addSession(t *testing.T, organizerID string, mode models.SessionMode, format models.GameFormat, cost float64) *models.QueueSession {
	t.Helper()
	session, err := f.sessions.Create(context.Background(), CreateSessionInput{
		CourtID:     "court-1",
		OrganizerID: organizerID,
		Mode:        mode,
		GameFormat:  format,
		MaxPlayers:  16,
		CostPerGame: cost,
		StartTime:   time.Now().Add(-time.Hour),
		EndTime:     time.Now().Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

// addWaiting seeds a waiting participant joined offset ago.
func (f *fixture) addWaiting(t *testing.T, sessionID primitive.ObjectID, userID string, offset time.Duration) models.Participant {
	t.Helper()
	p := models.Participant{
		ID:            primitive.NewObjectID(),
		SessionID:     sessionID,
		UserID:        userID,
		Status:        models.ParticipantWaiting,
		PaymentStatus: models.PaymentUnpaid,
		JoinedAt:      time.Now().Add(-offset),
	}
	if err := f.store.InsertParticipant(context.Background(), &p); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	return p
}

func (f *fixture) setPlayer(userID string, rating float64, skill int) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.players[userID] = models.PlayerRating{
		UserID:     userID,
		Rating:     rating,
		SkillLevel: skill,
	}
}

func (f *fixture) participant(t *testing.T, id primitive.ObjectID) models.Participant {
	t.Helper()
	p, err := f.store.GetParticipant(context.Background(), id)
	if err != nil || p == nil {
		t.Fatalf("participant %s not found", id.Hex())
	}
	return *p
}
