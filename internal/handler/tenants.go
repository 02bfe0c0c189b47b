package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// TenantStore defines the database methods needed by tenant handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TenantStore interface {
	CreateTenant(ctx context.Context, arg database.CreateTenantParams) (database.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	ListTenants(ctx context.Context, arg database.ListTenantsParams) ([]database.Tenant, error)
	UpdateTenant(ctx context.Context, arg database.UpdateTenantParams) (database.Tenant, error)
	SoftDeleteTenant(ctx context.Context, arg database.SoftDeleteTenantParams) error
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	ListUsersByTenant(ctx context.Context, arg database.ListUsersByTenantParams) ([]database.User, error)
}

// TenantHandler handles tenant provisioning. Admin only; mounted outside the
// tenant-scoped route tree.
type TenantHandler struct {
	store TenantStore
}

func NewTenantHandler(store TenantStore) *TenantHandler {
	return &TenantHandler{store: store}
}

// RegisterRoutes mounts the full tenant tree; used when a single mount point
// carries both the admin collection and the per-tenant routes.
func (h *TenantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{tid}", h.RegisterTenantRoutes)
}

// RegisterTenantRoutes mounts only the routes scoped to one tenant. The
// router mounts these under /tenants/{tid} behind RequireTenant.
func (h *TenantHandler) RegisterTenantRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/", h.Update)
	r.Delete("/", h.Delete)
	r.Get("/users", h.ListUsers)
	r.Post("/users", h.CreateUser)
}

// --- Request / Response types ---

type tenantRequest struct {
	TenantCode        string `json:"tenant_code"`
	BusinessName      string `json:"business_name"`
	ContactPerson     string `json:"contact_person"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	Status            string `json:"status"`
	SubscriptionStart string `json:"subscription_start"`
	SubscriptionEnd   string `json:"subscription_end"`
	Version           int64  `json:"version"`
}

type tenantResponse struct {
	ID                uuid.UUID `json:"id"`
	TenantCode        string    `json:"tenant_code"`
	BusinessName      string    `json:"business_name"`
	ContactPerson     *string   `json:"contact_person"`
	Email             *string   `json:"email"`
	Phone             *string   `json:"phone"`
	Address           *string   `json:"address"`
	Status            string    `json:"status"`
	SubscriptionStart *string   `json:"subscription_start"`
	SubscriptionEnd   *string   `json:"subscription_end"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type tenantUserResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
	Version  int64     `json:"version"`
}

func toTenantResponse(t database.Tenant) tenantResponse {
	resp := tenantResponse{
		ID:            t.ID,
		TenantCode:    t.TenantCode,
		BusinessName:  t.BusinessName,
		ContactPerson: textPtr(t.ContactPerson),
		Email:         textPtr(t.Email),
		Phone:         textPtr(t.Phone),
		Address:       textPtr(t.Address),
		Status:        t.Status,
		Version:       t.Version,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if t.SubscriptionStart.Valid {
		s := t.SubscriptionStart.Time.Format("2006-01-02")
		resp.SubscriptionStart = &s
	}
	if t.SubscriptionEnd.Valid {
		s := t.SubscriptionEnd.Time.Format("2006-01-02")
		resp.SubscriptionEnd = &s
	}
	return resp
}

func validTenantStatus(s string) bool {
	switch s {
	case enum.TenantStatusActive, enum.TenantStatusSuspended, enum.TenantStatusExpired:
		return true
	}
	return false
}

func parseDateParam(s string) (pgtype.Date, bool) {
	if s == "" {
		return pgtype.Date{}, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, false
	}
	return pgtype.Date{Time: t, Valid: true}, true
}

// --- Handlers ---

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	tenants, err := h.store.ListTenants(r.Context(), database.ListTenantsParams{Limit: limit, Offset: offset})
	if err != nil {
		log.Printf("ERROR: list tenants: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tenantResponse, len(tenants))
	for i, t := range tenants {
		resp[i] = toTenantResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.TenantCode == "" || req.BusinessName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant_code and business_name are required"})
		return
	}
	status := req.Status
	if status == "" {
		status = enum.TenantStatusActive
	}
	if !validTenantStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	subStart, ok := parseDateParam(req.SubscriptionStart)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subscription_start must be YYYY-MM-DD"})
		return
	}
	subEnd, ok := parseDateParam(req.SubscriptionEnd)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subscription_end must be YYYY-MM-DD"})
		return
	}

	createdBy := actorFromContext(r.Context())

	tenant, err := h.store.CreateTenant(r.Context(), database.CreateTenantParams{
		TenantCode:        req.TenantCode,
		BusinessName:      req.BusinessName,
		ContactPerson:     textOrNull(req.ContactPerson),
		Email:             textOrNull(req.Email),
		Phone:             textOrNull(req.Phone),
		Address:           textOrNull(req.Address),
		Status:            status,
		SubscriptionStart: subStart,
		SubscriptionEnd:   subEnd,
		CreatedBy:         createdBy,
	})
	if err != nil {
		if database.UniqueViolation(err, "") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "tenant code or email already exists"})
			return
		}
		log.Printf("ERROR: create tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), tid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: get tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.BusinessName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "business_name is required"})
		return
	}
	if !validTenantStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	subStart, ok := parseDateParam(req.SubscriptionStart)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subscription_start must be YYYY-MM-DD"})
		return
	}
	subEnd, ok := parseDateParam(req.SubscriptionEnd)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subscription_end must be YYYY-MM-DD"})
		return
	}

	updatedBy := actorFromContext(r.Context())

	tenant, err := h.store.UpdateTenant(r.Context(), database.UpdateTenantParams{
		ID:                tid,
		Version:           req.Version,
		BusinessName:      req.BusinessName,
		ContactPerson:     textOrNull(req.ContactPerson),
		Email:             textOrNull(req.Email),
		Phone:             textOrNull(req.Phone),
		Address:           textOrNull(req.Address),
		Status:            req.Status,
		SubscriptionStart: subStart,
		SubscriptionEnd:   subEnd,
		UpdatedBy:         updatedBy,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "tenant was modified concurrently, reload and retry"})
			return
		}
		if database.UniqueViolation(err, "") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
			return
		}
		log.Printf("ERROR: update tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req struct {
		Version int64 `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updatedBy := actorFromContext(r.Context())

	if err := h.store.SoftDeleteTenant(r.Context(), database.SoftDeleteTenantParams{
		ID:        tid,
		Version:   req.Version,
		UpdatedBy: updatedBy,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: delete tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TenantHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	limit, offset := parseLimitOffset(r)
	users, err := h.store.ListUsersByTenant(r.Context(), database.ListUsersByTenantParams{
		TenantID: tid, Limit: limit, Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tenantUserResponse, len(users))
	for i, u := range users {
		resp[i] = tenantUserResponse{
			ID: u.ID, Email: u.Email, FullName: u.FullName,
			Role: u.Role, IsActive: u.IsActive, Version: u.Version,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUser provisions an operator account inside the tenant. ADMIN role is
// deliberately not assignable here; admins are platform accounts.
func (h *TenantHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password and full_name are required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	switch req.Role {
	case enum.UserRoleOwner, enum.UserRoleManager, enum.UserRoleStaff:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	createdBy := actorFromContext(r.Context())

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		TenantID:     pgtype.UUID{Bytes: tid, Valid: true},
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		CreatedBy:    createdBy,
	})
	if err != nil {
		if database.UniqueViolation(err, "") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
			return
		}
		log.Printf("ERROR: create user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, tenantUserResponse{
		ID: user.ID, Email: user.Email, FullName: user.FullName,
		Role: user.Role, IsActive: user.IsActive, Version: user.Version,
	})
}
