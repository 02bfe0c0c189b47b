package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/middleware"
	"github.com/smtech/caterer-api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*service.PaymentResult, error)
	Refund(ctx context.Context, req service.RefundRequest) (*service.PaymentResult, error)
	ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error)
}

// PaymentLister is the read-only tenant-wide ledger query; ledger writes go
// through the service so the order's advance and balance stay reconciled.
type PaymentLister interface {
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error)
}

type PaymentHandler struct {
	svc    PaymentServicer
	lister PaymentLister
	notify Notifier
}

func NewPaymentHandler(svc PaymentServicer, lister PaymentLister, notify Notifier) *PaymentHandler {
	return &PaymentHandler{svc: svc, lister: lister, notify: notify}
}

// publish broadcasts a ledger event to the tenant's dashboard room.
func (h *PaymentHandler) publish(tid uuid.UUID, eventType string, res *service.PaymentResult) {
	if h.notify == nil {
		return
	}
	h.notify.Notify(tid, eventType, map[string]interface{}{
		"payment_number": res.Payment.PaymentNumber,
		"order_id":       res.Payment.OrderID,
		"amount":         numericToString(res.Payment.Amount),
		"balance_amount": numericToString(res.Order.BalanceAmount),
	})
}

// RegisterOrderRoutes registers the per-order ledger endpoints, nested under
// /orders/{id}.
func (h *PaymentHandler) RegisterOrderRoutes(r chi.Router) {
	r.Get("/", h.ListByOrder)
	r.Post("/", h.Record)
	r.Post("/{pid}/refund", h.Refund)
}

// RegisterTenantRoutes registers the tenant-wide ledger listing.
func (h *PaymentHandler) RegisterTenantRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// --- Request / Response types ---

type recordPaymentRequest struct {
	Amount         string `json:"amount"`
	Method         string `json:"payment_method"`
	PaymentDate    string `json:"payment_date"`
	TransactionRef string `json:"transaction_ref"`
	UpiID          string `json:"upi_id"`
	Notes          string `json:"notes"`
}

type paymentResponse struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	PaymentNumber  string    `json:"payment_number"`
	PaymentDate    string    `json:"payment_date"`
	Amount         string    `json:"amount"`
	Method         string    `json:"payment_method"`
	TransactionRef *string   `json:"transaction_ref"`
	UpiID          *string   `json:"upi_id"`
	Notes          *string   `json:"notes"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
}

type paymentResultResponse struct {
	Payment            paymentResponse `json:"payment"`
	Order              orderResponse   `json:"order"`
	OverpaymentWarning bool            `json:"overpayment_warning,omitempty"`
}

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		PaymentNumber:  p.PaymentNumber,
		Amount:         numericToString(p.Amount),
		Method:         p.Method,
		TransactionRef: textPtr(p.TransactionRef),
		UpiID:          textPtr(p.UpiID),
		Notes:          textPtr(p.Notes),
		Status:         p.Status,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
	}
	if p.PaymentDate.Valid {
		resp.PaymentDate = p.PaymentDate.Time.Format("2006-01-02")
	}
	return resp
}

func toPaymentResultResponse(res *service.PaymentResult) paymentResultResponse {
	return paymentResultResponse{
		Payment:            toPaymentResponse(res.Payment),
		Order:              toOrderResponse(res.Order),
		OverpaymentWarning: res.OverpaymentWarning,
	}
}

// --- Handlers ---

func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.RecordPayment(r.Context(), service.RecordPaymentRequest{
		TenantID:       tid,
		OrderID:        orderID,
		CreatedBy:      userID,
		Amount:         req.Amount,
		Method:         req.Method,
		PaymentDate:    req.PaymentDate,
		TransactionRef: req.TransactionRef,
		UpiID:          req.UpiID,
		Notes:          req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.publish(tid, "payment.recorded", result)
	writeJSON(w, http.StatusCreated, toPaymentResultResponse(result))
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	tid, orderID, userID, ok := orderScope(w, r)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	var req workflowBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Refund(r.Context(), service.RefundRequest{
		TenantID:  tid,
		OrderID:   orderID,
		PaymentID: paymentID,
		Version:   req.Version,
		UserID:    userID,
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.publish(tid, "payment.refunded", result)
	writeJSON(w, http.StatusOK, toPaymentResultResponse(result))
}

func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	tid, orderID, _, ok := orderScope(w, r)
	if !ok {
		return
	}

	payments, err := h.svc.ListByOrder(r.Context(), tid, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	if middleware.ClaimsFromContext(r.Context()) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	q := r.URL.Query()
	params := database.ListPaymentsParams{
		TenantID: tid,
		Status:   textOrNull(q.Get("status")),
	}
	if s := q.Get("from"); s != "" {
		d, ok := parseDateParam(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
			return
		}
		params.DateFrom = d
	}
	if s := q.Get("to"); s != "" {
		d, ok := parseDateParam(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD"})
			return
		}
		params.DateTo = d
	}
	params.Limit, params.Offset = parseLimitOffset(r)

	payments, err := h.lister.ListPayments(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}
