package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rallio-queue/internal/models"
	"rallio-queue/internal/services"
)

// PlayerHandler exposes the player's own competitive record.
type PlayerHandler struct {
	players *services.PlayerService
}

func NewPlayerHandler(players *services.PlayerService) *PlayerHandler {
	return &PlayerHandler{players: players}
}

type declareSkillRequest struct {
	SkillLevel int `json:"skillLevel"`
}

// DeclareSkill handles PUT /api/players/skill. A first-time player is seeded
// with a rating matching the declared level; later adjustments are limited.
func (h *PlayerHandler) DeclareSkill(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}

	var req declareSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SkillLevel < models.MinSkillLevel || req.SkillLevel > models.MaxSkillLevel {
		respondWithError(w, http.StatusBadRequest, "skillLevel must be between 1 and 10")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	player, err := h.players.DeclareSkillLevel(ctx, caller.UserID, req.SkillLevel)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, player)
}
