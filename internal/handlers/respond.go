package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"library-backend/internal/models"
	"library-backend/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors to HTTP statuses. Everything in the
// taxonomy is recoverable by the caller; only unknown errors become 500s.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrBookNotFound),
		errors.Is(err, models.ErrLoanNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyBorrowed),
		errors.Is(err, models.ErrOutOfStock),
		errors.Is(err, models.ErrAlreadyReturned),
		errors.Is(err, models.ErrAlreadyPaid):
		status = http.StatusConflict
	case errors.Is(err, models.ErrPaymentRequired):
		status = http.StatusPaymentRequired
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] internal error: %v", err)
		respondJSON(w, status, map[string]string{"error": "Internal server error"})
		return
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
