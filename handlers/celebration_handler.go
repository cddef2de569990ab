package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"avatarShopAPI/internal/celebration"
	"avatarShopAPI/middleware"

	"github.com/gorilla/mux"
)

type CelebrationHandler struct {
	boss        *celebration.BossTracker
	levels      *celebration.LevelTracker
	accessories *celebration.AccessoryTracker
}

func NewCelebrationHandler(store celebration.KeyValueStore) *CelebrationHandler {
	return &CelebrationHandler{
		boss:        celebration.NewBossTracker(store),
		levels:      celebration.NewLevelTracker(store),
		accessories: celebration.NewAccessoryTracker(store),
	}
}

type shownIDsRequest struct {
	IDs []string `json:"ids"`
}

type lastSeenLevelRequest struct {
	Level int `json:"level"`
}

type tierRequest struct {
	Stars     int     `json:"stars"`
	IsBoss    bool    `json:"is_boss"`
	LeveledUp bool    `json:"leveled_up"`
	ScorePct  float64 `json:"score_pct"`
}

type tierResponse struct {
	Tier   celebration.Tier       `json:"tier"`
	Config celebration.TierConfig `json:"config"`
}

func (h *CelebrationHandler) ShouldShowBoss(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	nodeID := mux.Vars(r)["nodeId"]
	respondWithJSON(w, http.StatusOK, map[string]bool{
		"should_show": h.boss.ShouldShow(ctx, clerkID, nodeID),
	})
}

func (h *CelebrationHandler) MarkBossShown(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	h.boss.MarkShown(ctx, clerkID, mux.Vars(r)["nodeId"])
	w.WriteHeader(http.StatusNoContent)
}

func levelVar(r *http.Request) (int, bool) {
	level, err := strconv.Atoi(mux.Vars(r)["level"])
	if err != nil || level < 1 {
		return 0, false
	}
	return level, true
}

func (h *CelebrationHandler) LevelCelebrated(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	level, ok := levelVar(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid level")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{
		"celebrated": h.levels.HasBeenCelebrated(ctx, clerkID, level),
	})
}

func (h *CelebrationHandler) MarkLevelCelebrated(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	level, ok := levelVar(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid level")
		return
	}

	h.levels.MarkCelebrated(ctx, clerkID, level)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CelebrationHandler) GetLastSeenLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	level, found := h.levels.LastSeenLevel(ctx, clerkID)
	if !found {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"level": nil})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"level": level})
}

func (h *CelebrationHandler) SetLastSeenLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req lastSeenLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level < 1 {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.levels.SetLastSeenLevel(ctx, clerkID, req.Level)
	w.WriteHeader(http.StatusNoContent)
}

// FilterUnseenAccessories returns the ids the student has not celebrated yet
// and records them as shown.
func (h *CelebrationHandler) FilterUnseenAccessories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req shownIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	unseen := h.accessories.Filter(ctx, clerkID, req.IDs)
	if unseen == nil {
		unseen = []string{}
	}
	if len(unseen) > 0 {
		h.accessories.MarkShown(ctx, clerkID, unseen...)
	}

	respondWithJSON(w, http.StatusOK, map[string][]string{"unseen": unseen})
}

func (h *CelebrationHandler) DetermineTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tier := celebration.DetermineTier(req.Stars, req.IsBoss, req.LeveledUp, req.ScorePct)
	respondWithJSON(w, http.StatusOK, tierResponse{Tier: tier, Config: celebration.ConfigFor(tier)})
}
