package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rallio-queue/internal/models"
	"rallio-queue/internal/services"
)

// QueueHandler exposes the player-facing queue operations.
type QueueHandler struct {
	queue *services.QueueService
}

func NewQueueHandler(queue *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

type joinResponse struct {
	Participant      *models.Participant `json:"participant"`
	Position         int                 `json:"position"`
	EstimatedWaitMin int                 `json:"estimatedWaitMinutes"`
}

// Join handles POST /api/sessions/{sessionId}/queue
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
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

	participant, err := h.queue.Join(ctx, sessionID, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	position, err := h.queue.Position(ctx, sessionID, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, joinResponse{
		Participant:      participant,
		Position:         position,
		EstimatedWaitMin: int(h.queue.EstimatedWait(position).Minutes()),
	})
}

type leaveRequest struct {
	ConfirmedPaid bool `json:"confirmedPaid"`
}

// Leave handles POST /api/sessions/{sessionId}/queue/leave
func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	sessionID, ok := pathObjectID(w, r, "sessionId")
	if !ok {
		return
	}

	var req leaveRequest
	if r.Body != nil {
		// Body is optional; absence means no payment confirmation.
		json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.queue.Leave(ctx, sessionID, caller.UserID, req.ConfirmedPaid); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

type positionResponse struct {
	Position         *int `json:"position"`
	EstimatedWaitMin *int `json:"estimatedWaitMinutes"`
}

// Position handles GET /api/sessions/{sessionId}/queue/position
// Position is null when the caller is not waiting (absent or mid-match).
func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request) {
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

	position, err := h.queue.Position(ctx, sessionID, caller.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	var resp positionResponse
	if position > 0 {
		wait := int(h.queue.EstimatedWait(position).Minutes())
		resp.Position = &position
		resp.EstimatedWaitMin = &wait
	}
	respondWithJSON(w, http.StatusOK, resp)
}
