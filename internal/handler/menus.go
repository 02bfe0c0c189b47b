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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/smtech/caterer-api/internal/database"
)

// MenuStore defines the database methods needed by menu handlers.
type MenuStore interface {
	CreateMenu(ctx context.Context, arg database.CreateMenuParams) (database.Menu, error)
	GetMenu(ctx context.Context, arg database.GetMenuParams) (database.Menu, error)
	ListMenus(ctx context.Context, tenantID uuid.UUID) ([]database.Menu, error)
	UpdateMenu(ctx context.Context, arg database.UpdateMenuParams) (database.Menu, error)
	SoftDeleteMenu(ctx context.Context, arg database.SoftDeleteParams) error
}

type MenuHandler struct {
	store MenuStore
}

func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type menuRequest struct {
	MenuCode    string `json:"menu_code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Version     int64  `json:"version"`
}

type menuResponse struct {
	ID          uuid.UUID `json:"id"`
	MenuCode    string    `json:"menu_code"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	UnitPrice   string    `json:"unit_price"`
	Version     int64     `json:"version"`
}

func toMenuResponse(m database.Menu) menuResponse {
	return menuResponse{
		ID:          m.ID,
		MenuCode:    m.MenuCode,
		Name:        m.Name,
		Description: textPtr(m.Description),
		UnitPrice:   numericToString(m.UnitPrice),
		Version:     m.Version,
	}
}

// parseUnitPrice accepts a non-negative decimal string and rounds it to the
// 2-decimal money scale.
func parseUnitPrice(s string) (pgtype.Numeric, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return pgtype.Numeric{}, false
	}
	return database.DecimalToNumeric(d.Round(2)), true
}

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	menus, err := h.store.ListMenus(r.Context(), tid)
	if err != nil {
		log.Printf("ERROR: list menus: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuResponse, len(menus))
	for i, m := range menus {
		resp[i] = toMenuResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.MenuCode == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu_code and name are required"})
		return
	}
	unitPrice, ok := parseUnitPrice(req.UnitPrice)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unit_price must be a non-negative decimal"})
		return
	}

	menu, err := h.store.CreateMenu(r.Context(), database.CreateMenuParams{
		TenantID:    tid,
		MenuCode:    req.MenuCode,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		UnitPrice:   unitPrice,
		CreatedBy:   actorFromContext(r.Context()),
	})
	if err != nil {
		if database.UniqueViolation(err, "") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "menu code already exists"})
			return
		}
		log.Printf("ERROR: create menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuResponse(menu))
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	menu, err := h.store.GetMenu(r.Context(), database.GetMenuParams{ID: id, TenantID: tid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: get menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuResponse(menu))
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	var req menuRequest
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

	menu, err := h.store.UpdateMenu(r.Context(), database.UpdateMenuParams{
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
			writeJSON(w, http.StatusConflict, map[string]string{"error": "menu was modified concurrently, reload and retry"})
			return
		}
		log.Printf("ERROR: update menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuResponse(menu))
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.store.SoftDeleteMenu(r.Context(), database.SoftDeleteParams{
		ID:        id,
		TenantID:  tid,
		Version:   req.Version,
		UpdatedBy: actorFromContext(r.Context()),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "menu was modified concurrently or does not exist"})
			return
		}
		log.Printf("ERROR: delete menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
