package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/progress"
	"avatarShopAPI/middleware"
	"avatarShopAPI/services"
)

type ProgressHandler struct {
	progressService *services.ProgressService
}

func NewProgressHandler(progressService *services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
	}
}

type unlockCheckRequest struct {
	Before progress.Snapshot `json:"before"`
}

type unlockCheckResponse struct {
	Unlocked []accessory.Accessory `json:"unlocked"`
	Progress progress.Snapshot     `json:"progress"`
}

func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	snap, err := h.progressService.Snapshot(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, snap)
}

// CheckUnlocks is called by the game client after a session ends with the
// snapshot it held before the game.
func (h *ProgressHandler) CheckUnlocks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req unlockCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	newly, after, err := h.progressService.CheckUnlocks(ctx, clerkID, req.Before)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, unlockCheckResponse{Unlocked: newly, Progress: after})
}
