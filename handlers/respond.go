package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"avatarShopAPI/internal/accessory"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps engine errors onto status codes. Anything
// unrecognised is logged and reported as a generic 500.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accessory.ErrAuthRequired):
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, accessory.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Accessory not found")
	case errors.Is(err, accessory.ErrAlreadyOwned):
		respondWithError(w, http.StatusConflict, "Accessory already owned")
	case errors.Is(err, accessory.ErrNotOwned):
		respondWithError(w, http.StatusConflict, "Accessory not owned")
	case errors.Is(err, accessory.ErrInsufficientFunds):
		respondWithError(w, http.StatusPaymentRequired, "Not enough points")
	default:
		log.Printf("Request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
