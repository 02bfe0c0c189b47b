package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/smtech/caterer-api/internal/apperr"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/enum"
	"github.com/smtech/caterer-api/internal/handler"
	"github.com/smtech/caterer-api/internal/middleware"
	"github.com/smtech/caterer-api/internal/service"
)

// --- Mock servicer ---

type mockPaymentService struct {
	recordFn func(ctx context.Context, req service.RecordPaymentRequest) (*service.PaymentResult, error)
	refundFn func(ctx context.Context, req service.RefundRequest) (*service.PaymentResult, error)
	listFn   func(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error)
}

func (m *mockPaymentService) RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*service.PaymentResult, error) {
	return m.recordFn(ctx, req)
}

func (m *mockPaymentService) Refund(ctx context.Context, req service.RefundRequest) (*service.PaymentResult, error) {
	return m.refundFn(ctx, req)
}

func (m *mockPaymentService) ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error) {
	return m.listFn(ctx, tenantID, orderID)
}

type mockPaymentLister struct {
	payments []database.Payment
	last     database.ListPaymentsParams
}

func (m *mockPaymentLister) ListPayments(_ context.Context, arg database.ListPaymentsParams) ([]database.Payment, error) {
	m.last = arg
	return m.payments, nil
}

// --- Helpers ---

func setupPaymentRouter(svc *mockPaymentService, lister *mockPaymentLister) *chi.Mux {
	h := handler.NewPaymentHandler(svc, lister, nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(middleware.RequireTenant)
			r.Route("/orders/{id}/payments", h.RegisterOrderRoutes)
			r.Route("/payments", h.RegisterTenantRoutes)
		})
	})
	return r
}

func samplePaymentResult(tenantID, orderID uuid.UUID, amount, balance string) *service.PaymentResult {
	payment := database.Payment{
		ID:            uuid.New(),
		TenantID:      tenantID,
		OrderID:       orderID,
		PaymentNumber: "PAY-20250115-0001",
		PaymentDate:   pgtype.Date{Time: time.Now(), Valid: true},
		Amount:        numeric(amount),
		Method:        enum.PaymentMethodUPI,
		Status:        enum.PaymentStatusCompleted,
	}
	payment.CreatedAt = time.Now()
	payment.Version = 1

	order := sampleOrderResult(tenantID, enum.OrderStatusApproved).Order
	order.ID = orderID
	order.AdvanceAmount = numeric(amount)
	order.BalanceAmount = numeric(balance)

	return &service.PaymentResult{Payment: payment, Order: order}
}

// --- Tests ---

func TestPaymentRecord(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	claims := testClaims(tenantID)

	var captured service.RecordPaymentRequest
	svc := &mockPaymentService{
		recordFn: func(_ context.Context, req service.RecordPaymentRequest) (*service.PaymentResult, error) {
			captured = req
			return samplePaymentResult(tenantID, orderID, "2000.00", "4372.00"), nil
		},
	}
	router := setupPaymentRouter(svc, &mockPaymentLister{})

	body := map[string]interface{}{
		"amount":         "2000.00",
		"payment_method": "UPI",
		"upi_id":         "ravi@upi",
	}
	rr := doAuthRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/orders/"+orderID.String()+"/payments", body, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d; body: %s", rr.Code, rr.Body.String())
	}

	if captured.OrderID != orderID || captured.TenantID != tenantID {
		t.Errorf("scope not forwarded: %+v", captured)
	}
	if captured.CreatedBy != claims.UserID {
		t.Errorf("created_by not taken from token")
	}

	resp := decodeObject(t, rr)
	payment := resp["payment"].(map[string]interface{})
	if payment["payment_number"] != "PAY-20250115-0001" {
		t.Errorf("payment_number: got %v", payment["payment_number"])
	}
	order := resp["order"].(map[string]interface{})
	if order["balance_amount"] != "4372.00" {
		t.Errorf("balance_amount: got %v", order["balance_amount"])
	}
	if _, ok := resp["overpayment_warning"]; ok {
		t.Errorf("overpayment_warning should be omitted when false")
	}
}

func TestPaymentRecordOverpaymentFlagged(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()

	svc := &mockPaymentService{
		recordFn: func(_ context.Context, _ service.RecordPaymentRequest) (*service.PaymentResult, error) {
			result := samplePaymentResult(tenantID, orderID, "7000.00", "-628.00")
			result.OverpaymentWarning = true
			return result, nil
		},
	}
	router := setupPaymentRouter(svc, &mockPaymentLister{})

	body := map[string]interface{}{"amount": "7000.00", "payment_method": "CASH"}
	rr := doAuthRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/orders/"+orderID.String()+"/payments", body, testClaims(tenantID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	resp := decodeObject(t, rr)
	if resp["overpayment_warning"] != true {
		t.Errorf("expected overpayment_warning true, got %v", resp["overpayment_warning"])
	}
	order := resp["order"].(map[string]interface{})
	if order["balance_amount"] != "-628.00" {
		t.Errorf("balance_amount: got %v, want -628.00", order["balance_amount"])
	}
}

func TestPaymentRecordValidationError(t *testing.T) {
	tenantID := uuid.New()
	svc := &mockPaymentService{
		recordFn: func(_ context.Context, _ service.RecordPaymentRequest) (*service.PaymentResult, error) {
			return nil, &apperr.Validation{Field: "amount", Message: "must be greater than zero"}
		},
	}
	router := setupPaymentRouter(svc, &mockPaymentLister{})

	body := map[string]interface{}{"amount": "0", "payment_method": "CASH"}
	rr := doAuthRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/orders/"+uuid.NewString()+"/payments", body, testClaims(tenantID))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentRecordCancelledOrderMapsTo409(t *testing.T) {
	tenantID := uuid.New()
	svc := &mockPaymentService{
		recordFn: func(_ context.Context, _ service.RecordPaymentRequest) (*service.PaymentResult, error) {
			return nil, &apperr.InvalidOperation{Message: "cannot record payment on a cancelled order"}
		},
	}
	router := setupPaymentRouter(svc, &mockPaymentLister{})

	body := map[string]interface{}{"amount": "100.00", "payment_method": "CASH"}
	rr := doAuthRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/orders/"+uuid.NewString()+"/payments", body, testClaims(tenantID))
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestPaymentRefund(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	paymentID := uuid.New()

	var captured service.RefundRequest
	svc := &mockPaymentService{
		refundFn: func(_ context.Context, req service.RefundRequest) (*service.PaymentResult, error) {
			captured = req
			result := samplePaymentResult(tenantID, orderID, "0.00", "6372.00")
			result.Payment.Status = enum.PaymentStatusRefunded
			return result, nil
		},
	}
	router := setupPaymentRouter(svc, &mockPaymentLister{})

	body := map[string]interface{}{"version": 1, "reason": "event cancelled by customer"}
	path := "/tenants/" + tenantID.String() + "/orders/" + orderID.String() + "/payments/" + paymentID.String() + "/refund"
	rr := doAuthRequest(t, router, http.MethodPost, path, body, testClaims(tenantID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rr.Code, rr.Body.String())
	}

	if captured.PaymentID != paymentID || captured.Reason != "event cancelled by customer" {
		t.Errorf("refund request not forwarded: %+v", captured)
	}

	resp := decodeObject(t, rr)
	payment := resp["payment"].(map[string]interface{})
	if payment["status"] != enum.PaymentStatusRefunded {
		t.Errorf("status: got %v, want REFUNDED", payment["status"])
	}
}

func TestPaymentListByOrder(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()

	svc := &mockPaymentService{
		listFn: func(_ context.Context, tid, oid uuid.UUID) ([]database.Payment, error) {
			if tid != tenantID || oid != orderID {
				t.Errorf("scope not forwarded: %s %s", tid, oid)
			}
			p := database.Payment{
				ID:            uuid.New(),
				TenantID:      tenantID,
				OrderID:       orderID,
				PaymentNumber: "PAY-20250115-0001",
				Amount:        numeric("2000.00"),
				Method:        enum.PaymentMethodCash,
				Status:        enum.PaymentStatusCompleted,
			}
			return []database.Payment{p}, nil
		},
	}
	router := setupPaymentRouter(svc, &mockPaymentLister{})

	rr := doAuthRequest(t, router, http.MethodGet, "/tenants/"+tenantID.String()+"/orders/"+orderID.String()+"/payments", nil, testClaims(tenantID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeList(t, rr); len(resp) != 1 {
		t.Errorf("expected 1 payment, got %d", len(resp))
	}
}

func TestPaymentTenantListFilters(t *testing.T) {
	tenantID := uuid.New()
	lister := &mockPaymentLister{}
	router := setupPaymentRouter(&mockPaymentService{}, lister)

	path := "/tenants/" + tenantID.String() + "/payments?status=REFUNDED&from=2025-01-01&to=2025-01-31"
	rr := doAuthRequest(t, router, http.MethodGet, path, nil, testClaims(tenantID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !lister.last.Status.Valid || lister.last.Status.String != "REFUNDED" {
		t.Errorf("status filter not forwarded: %+v", lister.last.Status)
	}
	if !lister.last.DateFrom.Valid || !lister.last.DateTo.Valid {
		t.Errorf("date filters not forwarded")
	}
}
