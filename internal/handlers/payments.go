package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rallio-queue/internal/audit"
	"rallio-queue/internal/db"
	"rallio-queue/internal/services"
)

// PaymentHandler exposes the organizer ledger actions.
type PaymentHandler struct {
	db     *db.MongoDB
	ledger *services.LedgerService
}

func NewPaymentHandler(database *db.MongoDB, ledger *services.LedgerService) *PaymentHandler {
	return &PaymentHandler{db: database, ledger: ledger}
}

type settleRequest struct {
	Amount float64 `json:"amount"`
}

// Settle handles POST /api/participants/{participantId}/settle
func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	participantID, ok := pathObjectID(w, r, "participantId")
	if !ok {
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondWithError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	participant, err := h.ledger.Settle(ctx, participantID, caller.UserID, req.Amount)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, participant)
}

// MarkPaid handles POST /api/participants/{participantId}/mark-paid
func (h *PaymentHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	participantID, ok := pathObjectID(w, r, "participantId")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.ledger.MarkPaid(ctx, participantID, caller.UserID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	audit.LogEvent(h.db, audit.EventMarkedPaid, caller.UserID, "", r, "participant "+participantID.Hex())
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

type waiveRequest struct {
	Reason string `json:"reason"`
}

// WaiveFee handles POST /api/participants/{participantId}/waive
func (h *PaymentHandler) WaiveFee(w http.ResponseWriter, r *http.Request) {
	caller := requireCaller(w, r)
	if caller == nil {
		return
	}
	participantID, ok := pathObjectID(w, r, "participantId")
	if !ok {
		return
	}

	var req waiveRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.ledger.WaiveFee(ctx, participantID, caller.UserID, req.Reason); err != nil {
		respondWithServiceError(w, err)
		return
	}

	audit.LogEvent(h.db, audit.EventFeeWaived, caller.UserID, "", r,
		fmt.Sprintf("participant %s: %s", participantID.Hex(), req.Reason))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "waived"})
}
