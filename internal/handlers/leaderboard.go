package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"rallio-queue/internal/services"
)

type LeaderboardHandler struct {
	store services.PlayerStore
}

func NewLeaderboardHandler(store services.PlayerStore) *LeaderboardHandler {
	return &LeaderboardHandler{store: store}
}

type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	Rating      float64 `json:"rating"`
	SkillLevel  int     `json:"skillLevel"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	GamesPlayed int     `json:"gamesPlayed"`
}

// GetLeaderboard returns the top players by rating.
// GET /api/leaderboard?limit=50
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	players, err := h.store.TopPlayers(ctx, limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	entries := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			UserID:      p.UserID,
			Rating:      p.Rating,
			SkillLevel:  p.SkillLevel,
			Wins:        p.Wins,
			Losses:      p.Losses,
			Draws:       p.Draws,
			GamesPlayed: p.GamesPlayed,
		}
	}
	respondWithJSON(w, http.StatusOK, entries)
}
