package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rallio-queue/internal/audit"
	"rallio-queue/internal/db"
	"rallio-queue/internal/models"
	"rallio-queue/internal/services"
)

// MatchHandler exposes the match state machine.
type MatchHandler struct {
	db      *db.MongoDB
	matches *services.MatchService
}

func NewMatchHandler(database *db.MongoDB, matches *services.MatchService) *MatchHandler {
	return &MatchHandler{db: database, matches: matches}
}

type assignMatchRequest struct {
	MatchSize int `json:"matchSize"`
}

// Assign handles POST /api/sessions/{sessionId}/matches
func (h *MatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}

	var req assignMatchRequest
	if r.Body != nil {
		// Body is optional; zero matchSize falls back to the session format.
		json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	match, err := h.matches.Assign(ctx, sessionID, caller.UserID, req.MatchSize)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, match)
}

// Start handles POST /api/matches/{matchId}/start
func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	matchID, ok := pathObjectID(w, r, "matchId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.matches.Start(ctx, matchID, caller.UserID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(models.MatchInProgress)})
}

type recordScoreRequest struct {
	ScoreA int    `json:"scoreA"`
	ScoreB int    `json:"scoreB"`
	Winner string `json:"winner"`
}

// RecordScore handles POST /api/matches/{matchId}/score
func (h *MatchHandler) RecordScore(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	matchID, ok := pathObjectID(w, r, "matchId")
	if !ok {
		return
	}

	var req recordScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.IsValidWinner(req.Winner) {
		respondWithError(w, http.StatusBadRequest, "winner must be team_a, team_b or draw")
		return
	}
	if req.ScoreA < 0 || req.ScoreB < 0 {
		respondWithError(w, http.StatusBadRequest, "scores cannot be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	err := h.matches.RecordScore(ctx, matchID, caller.UserID, req.ScoreA, req.ScoreB, models.MatchWinner(req.Winner))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(models.MatchCompleted)})
}

// Cancel handles POST /api/matches/{matchId}/cancel
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	matchID, ok := pathObjectID(w, r, "matchId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.matches.Cancel(ctx, matchID, caller.UserID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	audit.LogEvent(h.db, audit.EventMatchCancelled, caller.UserID, "", r, "match "+matchID.Hex())
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(models.MatchCancelled)})
}

// Active handles GET /api/matches/active, returning the caller's current match.
func (h *MatchHandler) Active(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	match, err := h.matches.ActiveMatch(ctx, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"match": match})
}
