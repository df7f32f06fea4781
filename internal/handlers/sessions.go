package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"rallio-queue/internal/audit"
	"rallio-queue/internal/db"
	"rallio-queue/internal/models"
	"rallio-queue/internal/services"
)

// SessionHandler exposes the organizer session lifecycle.
type SessionHandler struct {
	db       *db.MongoDB
	sessions *services.SessionService
}

func NewSessionHandler(database *db.MongoDB, sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{db: database, sessions: sessions}
}

type createSessionRequest struct {
	CourtID     string  `json:"courtId"`
	Mode        string  `json:"mode"`
	GameFormat  string  `json:"gameFormat"`
	MaxPlayers  int     `json:"maxPlayers"`
	CostPerGame float64 `json:"costPerGame"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid startTime, expected RFC3339")
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid endTime, expected RFC3339")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session, err := h.sessions.Create(ctx, services.CreateSessionInput{
		CourtID:     req.CourtID,
		OrganizerID: caller.UserID,
		Mode:        models.SessionMode(req.Mode),
		GameFormat:  models.GameFormat(req.GameFormat),
		MaxPlayers:  req.MaxPlayers,
		CostPerGame: req.CostPerGame,
		StartTime:   startTime,
		EndTime:     endTime,
	})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	audit.LogEvent(h.db, audit.EventSessionCreated, caller.UserID, session.ID.Hex(), r, "")
	respondWithJSON(w, http.StatusCreated, session)
}

// List handles GET /api/sessions (the caller's own sessions).
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sessions, err := h.sessions.ListByOrganizer(ctx, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// Pause handles POST /api/sessions/{sessionId}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.sessions.Pause(ctx, sessionID, caller.UserID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Resume handles POST /api/sessions/{sessionId}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.sessions.Resume(ctx, sessionID, caller.UserID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

// Close handles POST /api/sessions/{sessionId}/close
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	totals, err := h.sessions.Close(ctx, sessionID, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	audit.LogEvent(h.db, audit.EventSessionClosed, caller.UserID, sessionID.Hex(), r, "")
	respondWithJSON(w, http.StatusOK, totals)
}

// Summary handles GET /api/sessions/{sessionId}/summary
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	summary, err := h.sessions.Summary(ctx, sessionID, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// RemoveParticipant handles DELETE /api/sessions/{sessionId}/participants/{userId}
func (h *SessionHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing userId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.sessions.RemoveParticipant(ctx, sessionID, caller.UserID, userID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	audit.LogEvent(h.db, audit.EventParticipantRemoved, caller.UserID, sessionID.Hex(), r, "removed "+userID)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
