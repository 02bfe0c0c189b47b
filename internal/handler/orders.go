package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/middleware"
	"github.com/smtech/caterer-api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*service.OrderResult, error)
	Update(ctx context.Context, req service.UpdateOrderRequest) (*service.OrderResult, error)
	AddMenuItem(ctx context.Context, req service.LineMutationRequest) (*service.OrderResult, error)
	RemoveMenuItem(ctx context.Context, req service.LineMutationRequest) (*service.OrderResult, error)
	AddUtility(ctx context.Context, req service.LineMutationRequest) (*service.OrderResult, error)
	RemoveUtility(ctx context.Context, req service.LineMutationRequest) (*service.OrderResult, error)
	Submit(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
	Approve(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
	Reject(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
	StartProgress(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
	Complete(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
	Cancel(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
	Clone(ctx context.Context, req service.CloneRequest) (*service.OrderResult, error)
	SoftDelete(ctx context.Context, req service.WorkflowRequest) error
	Restore(ctx context.Context, req service.WorkflowRequest) (*service.OrderResult, error)
}

// OrderLister is the read-only listing query; everything that mutates an
// order goes through the service so totals and workflow stay consistent.
type OrderLister interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

type OrderHandler struct {
	svc    OrderServicer
	lister OrderLister
	notify Notifier
}

func NewOrderHandler(svc OrderServicer, lister OrderLister, notify Notifier) *OrderHandler {
	return &OrderHandler{svc: svc, lister: lister, notify: notify}
}

// publish broadcasts an order event to the tenant's dashboard room.
func (h *OrderHandler) publish(tid uuid.UUID, eventType string, res *service.OrderResult) {
	if h.notify == nil {
		return
	}
	h.notify.Notify(tid, eventType, map[string]interface{}{
		"id":           res.Order.ID,
		"order_number": res.Order.OrderNumber,
		"status":       res.Order.Status,
	})
}

// RegisterRoutes registers order endpoints on a tenant-scoped router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/restore", h.Restore)
		r.Post("/clone", h.Clone)

		r.Post("/submit", h.transition(h.svc.Submit))
		r.Post("/approve", h.transition(h.svc.Approve))
		r.Post("/reject", h.transition(h.svc.Reject))
		r.Post("/start", h.transition(h.svc.StartProgress))
		r.Post("/complete", h.transition(h.svc.Complete))
		r.Post("/cancel", h.transition(h.svc.Cancel))

		r.Post("/menu-items", h.AddMenuItem)
		r.Delete("/menu-items/{itemID}", h.RemoveMenuItem)
		r.Post("/utilities", h.AddUtility)
		r.Delete("/utilities/{itemID}", h.RemoveUtility)
	})
}

// --- Request / Response types ---

type orderLineInput struct {
	MenuID    string `json:"menu_id,omitempty"`
	UtilityID string `json:"utility_id,omitempty"`
	Quantity  int32  `json:"quantity"`
}

type orderRequest struct {
	CustomerID      string           `json:"customer_id"`
	EventTypeID     string           `json:"event_type_id"`
	EventDate       string           `json:"event_date"`
	EventTime       string           `json:"event_time"`
	VenueName       string           `json:"venue_name"`
	VenueAddress    string           `json:"venue_address"`
	GuestCount      int32            `json:"guest_count"`
	DiscountPercent string           `json:"discount_percent"`
	TaxPercent      string           `json:"tax_percent"`
	Notes           string           `json:"notes"`
	MenuItems       []orderLineInput `json:"menu_items"`
	Utilities       []orderLineInput `json:"utilities"`
	Version         int64            `json:"version"`
}

type workflowBody struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

type lineMutationBody struct {
	MenuID    string `json:"menu_id"`
	UtilityID string `json:"utility_id"`
	Quantity  int32  `json:"quantity"`
	Version   int64  `json:"version"`
}

type orderLineResponse struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"item_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
}

type orderResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	EventTypeID uuid.UUID `json:"event_type_id"`
	EventDate   string    `json:"event_date"`
	EventTime   *string   `json:"event_time"`
	VenueName   *string   `json:"venue_name"`
	VenueAddr   *string   `json:"venue_address"`
	GuestCount  int32     `json:"guest_count"`

	MenuSubtotal    string `json:"menu_subtotal"`
	UtilitySubtotal string `json:"utility_subtotal"`
	Subtotal        string `json:"subtotal"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	TaxPercent      string `json:"tax_percent"`
	TaxAmount       string `json:"tax_amount"`
	TotalAmount     string `json:"total_amount"`
	AdvanceAmount   string `json:"advance_amount"`
	BalanceAmount   string `json:"balance_amount"`

	Status string  `json:"status"`
	Notes  *string `json:"notes"`

	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	RejectionReason    *string    `json:"rejection_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	MenuItems []orderLineResponse `json:"menu_items,omitempty"`
	Utilities []orderLineResponse `json:"utilities,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func timestampPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		EventTypeID: o.EventTypeID,
		GuestCount:  o.GuestCount,

		MenuSubtotal:    numericToString(o.MenuSubtotal),
		UtilitySubtotal: numericToString(o.UtilitySubtotal),
		Subtotal:        numericToString(o.Subtotal),
		DiscountPercent: numericToString(o.DiscountPercent),
		DiscountAmount:  numericToString(o.DiscountAmount),
		TaxPercent:      numericToString(o.TaxPercent),
		TaxAmount:       numericToString(o.TaxAmount),
		TotalAmount:     numericToString(o.TotalAmount),
		AdvanceAmount:   numericToString(o.AdvanceAmount),
		BalanceAmount:   numericToString(o.BalanceAmount),

		Status: o.Status,
		Notes:  textPtr(o.Notes),

		VenueName: textPtr(o.VenueName),
		VenueAddr: textPtr(o.VenueAddr),

		SubmittedAt:        timestampPtr(o.SubmittedAt),
		ApprovedAt:         timestampPtr(o.ApprovedAt),
		RejectedAt:         timestampPtr(o.RejectedAt),
		RejectionReason:    textPtr(o.RejectionReason),
		CancelledAt:        timestampPtr(o.CancelledAt),
		CancellationReason: textPtr(o.CancellationReason),
		CompletedAt:        timestampPtr(o.CompletedAt),

		Version:   o.Version,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.EventDate.Valid {
		resp.EventDate = o.EventDate.Time.Format("2006-01-02")
	}
	if o.EventTime.Valid {
		micros := o.EventTime.Microseconds
		s := fmt.Sprintf("%02d:%02d", micros/3600e6, micros/60e6%60)
		resp.EventTime = &s
	}
	return resp
}

func toOrderResultResponse(res *service.OrderResult) orderResponse {
	resp := toOrderResponse(res.Order)
	for _, it := range res.MenuItems {
		resp.MenuItems = append(resp.MenuItems, orderLineResponse{
			ID:        it.ID,
			ItemID:    it.MenuID,
			Quantity:  it.Quantity,
			UnitPrice: numericToString(it.UnitPrice),
			Subtotal:  numericToString(it.Subtotal),
		})
	}
	for _, it := range res.Utilities {
		resp.Utilities = append(resp.Utilities, orderLineResponse{
			ID:        it.ID,
			ItemID:    it.UtilityID,
			Quantity:  it.Quantity,
			UnitPrice: numericToString(it.UnitPrice),
			Subtotal:  numericToString(it.Subtotal),
		})
	}
	return resp
}

// orderScope pulls the tenant, order id and caller identity every order
// endpoint needs. Writes the error response itself on failure.
func orderScope(w http.ResponseWriter, r *http.Request) (tid, orderID, userID uuid.UUID, ok bool) {
	tid, tidOK := tenantFromPath(r)
	if !tidOK {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	return tid, orderID, claims.UserID, true
}

// --- Handlers ---

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	q := r.URL.Query()
	params := database.ListOrdersParams{
		TenantID: tid,
		Status:   textOrNull(q.Get("status")),
	}
	if s := q.Get("customer_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id filter"})
			return
		}
		params.CustomerID = pgtype.UUID{Bytes: id, Valid: true}
	}
	if s := q.Get("from"); s != "" {
		d, ok := parseDateParam(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
			return
		}
		params.EventDateFrom = d
	}
	if s := q.Get("to"); s != "" {
		d, ok := parseDateParam(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD"})
			return
		}
		params.EventDateTo = d
	}
	params.Limit, params.Offset = parseLimitOffset(r)

	orders, err := h.lister.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		TenantID:        tid,
		CreatedBy:       claims.UserID,
		CustomerID:      req.CustomerID,
		EventTypeID:     req.EventTypeID,
		EventDate:       req.EventDate,
		EventTime:       req.EventTime,
		VenueName:       req.VenueName,
		VenueAddress:    req.VenueAddress,
		GuestCount:      req.GuestCount,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      req.TaxPercent,
		Notes:           req.Notes,
		MenuItems:       toLineRequests(req.MenuItems, false),
		Utilities:       toLineRequests(req.Utilities, true),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.publish(tid, "order.created", result)
	writeJSON(w, http.StatusCreated, toOrderResultResponse(result))
}

func toLineRequests(lines []orderLineInput, utility bool) []service.OrderLineRequest {
	reqs := make([]service.OrderLineRequest, len(lines))
	for i, l := range lines {
		id := l.MenuID
		if utility {
			id = l.UtilityID
		}
		reqs[i] = service.OrderLineRequest{ItemID: id, Quantity: l.Quantity}
	}
	return reqs
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, orderID, _, ok := orderScope(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Get(r.Context(), tid, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Update(r.Context(), service.UpdateOrderRequest{
		TenantID:        tid,
		OrderID:         orderID,
		Version:         req.Version,
		UpdatedBy:       userID,
		CustomerID:      req.CustomerID,
		EventTypeID:     req.EventTypeID,
		EventDate:       req.EventDate,
		EventTime:       req.EventTime,
		VenueName:       req.VenueName,
		VenueAddress:    req.VenueAddress,
		GuestCount:      req.GuestCount,
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      req.TaxPercent,
		Notes:           req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req workflowBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.svc.SoftDelete(r.Context(), service.WorkflowRequest{
		TenantID: tid,
		OrderID:  orderID,
		Version:  req.Version,
		UserID:   userID,
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) Restore(w http.ResponseWriter, r *http.Request) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Restore(r.Context(), service.WorkflowRequest{
		TenantID: tid,
		OrderID:  orderID,
		UserID:   userID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

func (h *OrderHandler) Clone(w http.ResponseWriter, r *http.Request) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req struct {
		EventDate string `json:"event_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Clone(r.Context(), service.CloneRequest{
		TenantID:  tid,
		OrderID:   orderID,
		CreatedBy: userID,
		EventDate: req.EventDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResultResponse(result))
}

// transition adapts one workflow verb of the service into a handler. All six
// verbs share the request/response shape.
func (h *OrderHandler) transition(verb func(context.Context, service.WorkflowRequest) (*service.OrderResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tid, orderID, userID, ok := orderScope(w, r)
		if !ok {
			return
		}

		var req workflowBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		result, err := verb(r.Context(), service.WorkflowRequest{
			TenantID: tid,
			OrderID:  orderID,
			Version:  req.Version,
			UserID:   userID,
			Reason:   req.Reason,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		h.publish(tid, "order.status_changed", result)
		writeJSON(w, http.StatusOK, toOrderResultResponse(result))
	}
}

func (h *OrderHandler) AddMenuItem(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, h.svc.AddMenuItem, func(b lineMutationBody) string { return b.MenuID })
}

func (h *OrderHandler) AddUtility(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, h.svc.AddUtility, func(b lineMutationBody) string { return b.UtilityID })
}

func (h *OrderHandler) mutateLine(w http.ResponseWriter, r *http.Request, mutate func(context.Context, service.LineMutationRequest) (*service.OrderResult, error), itemID func(lineMutationBody) string) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req lineMutationBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := mutate(r.Context(), service.LineMutationRequest{
		TenantID:  tid,
		OrderID:   orderID,
		Version:   req.Version,
		UpdatedBy: userID,
		ItemID:    itemID(req),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

func (h *OrderHandler) RemoveMenuItem(w http.ResponseWriter, r *http.Request) {
	h.removeLine(w, r, h.svc.RemoveMenuItem)
}

func (h *OrderHandler) RemoveUtility(w http.ResponseWriter, r *http.Request) {
	h.removeLine(w, r, h.svc.RemoveUtility)
}

func (h *OrderHandler) removeLine(w http.ResponseWriter, r *http.Request, remove func(context.Context, service.LineMutationRequest) (*service.OrderResult, error)) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req workflowBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := remove(r.Context(), service.LineMutationRequest{
		TenantID:  tid,
		OrderID:   orderID,
		Version:   req.Version,
		UpdatedBy: userID,
		ItemID:    chi.URLParam(r, "itemID"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}
