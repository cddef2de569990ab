package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/middleware"
	"avatarShopAPI/services"

	"github.com/google/uuid"
)

type AccessoryHandler struct {
	accessoryService *services.AccessoryService
	progressService  *services.ProgressService
}

func NewAccessoryHandler(accessoryService *services.AccessoryService, progressService *services.ProgressService) *AccessoryHandler {
	return &AccessoryHandler{
		accessoryService: accessoryService,
		progressService:  progressService,
	}
}

func (h *AccessoryHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var filter accessory.Filter
	if c := r.URL.Query().Get("category"); c != "" {
		category := accessory.Category(c)
		if !category.Valid() {
			respondWithError(w, http.StatusBadRequest, "Unknown category")
			return
		}
		filter.Category = category
	}

	catalog, err := h.accessoryService.ListCatalog(ctx, filter)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, catalog)
}

func (h *AccessoryHandler) CatalogStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	groups, err := h.progressService.CatalogStatus(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, groups)
}

func (h *AccessoryHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	owned, err := h.accessoryService.ListOwned(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, owned)
}

func (h *AccessoryHandler) ListEquipped(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	equipped, err := h.accessoryService.ListEquipped(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, equipped)
}

func (h *AccessoryHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req accessory.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	accessoryID, err := uuid.Parse(req.AccessoryID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid accessory_id")
		return
	}

	owned, err := h.accessoryService.Purchase(ctx, clerkID, accessoryID, req.Slot)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, owned)
}

func (h *AccessoryHandler) Equip(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req accessory.EquipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	accessoryID, err := uuid.Parse(req.AccessoryID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid accessory_id")
		return
	}

	owned, err := h.accessoryService.Equip(ctx, clerkID, accessoryID, req.Slot)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, owned)
}

func (h *AccessoryHandler) Unequip(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req accessory.UnequipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	accessoryID, err := uuid.Parse(req.AccessoryID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid accessory_id")
		return
	}

	owned, err := h.accessoryService.Unequip(ctx, clerkID, accessoryID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, owned)
}

func (h *AccessoryHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req accessory.MetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	accessoryID, err := uuid.Parse(req.AccessoryID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid accessory_id")
		return
	}

	owned, err := h.accessoryService.UpdateCustomMetadata(ctx, clerkID, accessoryID, req.CustomMetadata)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, owned)
}
