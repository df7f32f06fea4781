package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"rallio-queue/internal/middleware"
	"rallio-queue/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithServiceError maps service error kinds to HTTP statuses. Typed
// errors carry structured payloads so clients can render actionable prompts.
func respondWithServiceError(w http.ResponseWriter, err error) {
	var cooldown *services.CooldownError
	var skillCooldown *services.SkillChangeCooldownError
	var payment *services.PaymentRequiredError
	var transition *services.InvalidTransitionError

	switch {
	case errors.Is(err, services.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrUnauthorized):
		respondWithError(w, http.StatusForbidden, "You are not allowed to perform this action")
	case errors.Is(err, services.ErrAlreadyQueued):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInsufficientPlayers):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPlayerInMatch):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSkillChangeTooLarge):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &skillCooldown):
		respondWithError(w, http.StatusConflict, skillCooldown.Error())
	case errors.As(err, &cooldown):
		respondWithJSON(w, http.StatusConflict, map[string]interface{}{
			"error":            cooldown.Error(),
			"remainingSeconds": int(cooldown.Remaining.Seconds()),
		})
	case errors.As(err, &payment):
		respondWithJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":       payment.Error(),
			"amountOwed":  payment.AmountOwed,
			"gamesPlayed": payment.GamesPlayed,
		})
	case errors.As(err, &transition):
		respondWithError(w, http.StatusConflict, transition.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireCaller pulls the authenticated caller from the context; writes 401
// and returns nil when absent (route not behind RequireAuth).
func requireCaller(w http.ResponseWriter, r *http.Request) *middleware.Caller {
	caller, ok := middleware.GetCallerFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	return caller
}

// pathObjectID parses a Mongo ObjectID from a mux path variable; writes 400
// on malformed ids.
func pathObjectID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}
