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

// EventTypeStore defines the database methods needed by event type handlers.
type EventTypeStore interface {
	CreateEventType(ctx context.Context, arg database.CreateEventTypeParams) (database.EventType, error)
	GetEventType(ctx context.Context, arg database.GetEventTypeParams) (database.EventType, error)
	ListEventTypes(ctx context.Context, tenantID uuid.UUID) ([]database.EventType, error)
	UpdateEventType(ctx context.Context, arg database.UpdateEventTypeParams) (database.EventType, error)
	SoftDeleteEventType(ctx context.Context, arg database.SoftDeleteParams) error
}

type EventTypeHandler struct {
	store EventTypeStore
}

func NewEventTypeHandler(store EventTypeStore) *EventTypeHandler {
	return &EventTypeHandler{store: store}
}

func (h *EventTypeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type eventTypeRequest struct {
	EventCode string `json:"event_code"`
	Name      string `json:"name"`
	Version   int64  `json:"version"`
}

type eventTypeResponse struct {
	ID        uuid.UUID `json:"id"`
	EventCode string    `json:"event_code"`
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
}

func toEventTypeResponse(e database.EventType) eventTypeResponse {
	return eventTypeResponse{ID: e.ID, EventCode: e.EventCode, Name: e.Name, Version: e.Version}
}

func (h *EventTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	types, err := h.store.ListEventTypes(r.Context(), tid)
	if err != nil {
		log.Printf("ERROR: list event types: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]eventTypeResponse, len(types))
	for i, e := range types {
		resp[i] = toEventTypeResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *EventTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req eventTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.EventCode == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event_code and name are required"})
		return
	}

	eventType, err := h.store.CreateEventType(r.Context(), database.CreateEventTypeParams{
		TenantID:  tid,
		EventCode: req.EventCode,
		Name:      req.Name,
		CreatedBy: actorFromContext(r.Context()),
	})
	if err != nil {
		if database.UniqueViolation(err, "") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "event code already exists"})
			return
		}
		log.Printf("ERROR: create event type: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toEventTypeResponse(eventType))
}

func (h *EventTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event type ID"})
		return
	}

	eventType, err := h.store.GetEventType(r.Context(), database.GetEventTypeParams{ID: id, TenantID: tid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "event type not found"})
			return
		}
		log.Printf("ERROR: get event type: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toEventTypeResponse(eventType))
}

func (h *EventTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event type ID"})
		return
	}

	var req eventTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	eventType, err := h.store.UpdateEventType(r.Context(), database.UpdateEventTypeParams{
		ID:        id,
		TenantID:  tid,
		Version:   req.Version,
		Name:      req.Name,
		UpdatedBy: actorFromContext(r.Context()),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "event type was modified concurrently, reload and retry"})
			return
		}
		log.Printf("ERROR: update event type: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toEventTypeResponse(eventType))
}

func (h *EventTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event type ID"})
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.store.SoftDeleteEventType(r.Context(), database.SoftDeleteParams{
		ID:        id,
		TenantID:  tid,
		Version:   req.Version,
		UpdatedBy: actorFromContext(r.Context()),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "event type was modified concurrently or does not exist"})
			return
		}
		log.Printf("ERROR: delete event type: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
