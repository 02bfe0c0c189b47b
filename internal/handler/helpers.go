package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/smtech/caterer-api/internal/apperr"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/middleware"
)

// Notifier pushes domain events to connected dashboard clients.
// Satisfied by *ws.Hub; a nil Notifier disables broadcasting.
type Notifier interface {
	Notify(tenantID uuid.UUID, eventType string, payload interface{})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeDomainError maps the typed domain errors onto HTTP statuses. Anything
// untyped is an internal error and gets logged, not leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *apperr.Validation:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": e.Error()})
	case *apperr.NotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": e.Error()})
	case *apperr.Duplicate:
		writeJSON(w, http.StatusConflict, map[string]string{"error": e.Error()})
	case *apperr.InvalidOperation:
		writeJSON(w, http.StatusConflict, map[string]string{"error": e.Error()})
	case *apperr.Conflict:
		writeJSON(w, http.StatusConflict, map[string]string{"error": e.Error()})
	case *apperr.Unauthorized:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": e.Error()})
	default:
		log.Printf("ERROR: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func numericToString(n pgtype.Numeric) string {
	return database.NumericToDecimal(n).StringFixed(2)
}

// tenantFromPath parses the {tid} path parameter. The middleware has already
// authorized it against the caller's claims.
func tenantFromPath(r *http.Request) (uuid.UUID, bool) {
	tid, err := uuid.Parse(chi.URLParam(r, "tid"))
	return tid, err == nil
}

func parseLimitOffset(r *http.Request) (int32, int32) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return int32(limit), int32(offset)
}

// actorFromContext returns the authenticated user's ID for audit columns.
func actorFromContext(ctx context.Context) pgtype.UUID {
	if claims := middleware.ClaimsFromContext(ctx); claims != nil {
		return pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}
	return pgtype.UUID{}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
