package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/smtech/caterer-api/internal/database"
)

// UtilityStore defines the database methods needed by utility handlers.
// Utilities are rentable equipment (tents, sound systems, serving gear).
type UtilityStore interface {
	CreateUtility(ctx context.Context, arg database.CreateUtilityParams) (database.Utility, error)
	GetUtility(ctx context.Context, arg database.GetUtilityParams) (database.Utility, error)
	ListUtilities(ctx context.Context, tenantID uuid.UUID) ([]database.Utility, error)
	UpdateUtility(ctx context.Context, arg database.UpdateUtilityParams) (database.Utility, error)
	SoftDeleteUtility(ctx context.Context, arg database.SoftDeleteParams) error
}

type UtilityHandler struct {
	store UtilityStore
}

func NewUtilityHandler(store UtilityStore) *UtilityHandler {
	return &UtilityHandler{store: store}
}

func (h *UtilityHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type utilityRequest struct {
	UtilityCode string `json:"utility_code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Version     int64  `json:"version"`
}

type utilityResponse struct {
	ID          uuid.UUID `json:"id"`
	UtilityCode string    `json:"utility_code"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	UnitPrice   string    `json:"unit_price"`
	Version     int64     `json:"version"`
}

func toUtilityResponse(u database.Utility) utilityResponse {
	return utilityResponse{
		ID:          u.ID,
		UtilityCode: u.UtilityCode,
		Name:        u.Name,
		Description: textPtr(u.Description),
		UnitPrice:   numericToString(u.UnitPrice),
		Version:     u.Version,
	}
}

func (h *UtilityHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	utilities, err := h.store.ListUtilities(r.Context(), tid)
	if err != nil {
		log.Printf("ERROR: list utilities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]utilityResponse, len(utilities))
	for i, u := range utilities {
		resp[i] = toUtilityResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UtilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req utilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UtilityCode == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "utility_code and name are required"})
		return
	}
	unitPrice, ok := parseUnitPrice(req.UnitPrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit_price must be a non-negative decimal"})
		return
	}

	utility, err := h.store.CreateUtility(r.Context(), database.CreateUtilityParams{
		TenantID:    tid,
		UtilityCode: req.UtilityCode,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		UnitPrice:   unitPrice,
		CreatedBy:   actorFromContext(r.Context()),
	})
	if err != nil {
		if database.UniqueViolation(err, "") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "utility code already exists"})
			return
		}
		log.Printf("ERROR: create utility: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toUtilityResponse(utility))
}

func (h *UtilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid utility ID"})
		return
	}

	utility, err := h.store.GetUtility(r.Context(), database.GetUtilityParams{ID: id, TenantID: tid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "utility not found"})
			return
		}
		log.Printf("ERROR: get utility: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUtilityResponse(utility))
}

func (h *UtilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid utility ID"})
		return
	}

	var req utilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	unitPrice, ok := parseUnitPrice(req.UnitPrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit_price must be a non-negative decimal"})
		return
	}

	utility, err := h.store.UpdateUtility(r.Context(), database.UpdateUtilityParams{
		ID:          id,
		TenantID:    tid,
		Version:     req.Version,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		UnitPrice:   unitPrice,
		UpdatedBy:   actorFromContext(r.Context()),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "utility was modified concurrently, reload and retry"})
			return
		}
		log.Printf("ERROR: update utility: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUtilityResponse(utility))
}

func (h *UtilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid utility ID"})
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.store.SoftDeleteUtility(r.Context(), database.SoftDeleteParams{
		ID:        id,
		TenantID:  tid,
		Version:   req.Version,
		UpdatedBy: actorFromContext(r.Context()),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "utility was modified concurrently or does not exist"})
			return
		}
		log.Printf("ERROR: delete utility: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
