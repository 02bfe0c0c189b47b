package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/smtech/caterer-api/internal/apperr"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/enum"
)

// fakePaymentStore is the in-memory PaymentStore counterpart of
// fakeOrderStore: tenant filter, tombstone filter and version CAS included.
type fakePaymentStore struct {
	orders   map[uuid.UUID]database.Order
	payments map[uuid.UUID]database.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		orders:   make(map[uuid.UUID]database.Order),
		payments: make(map[uuid.UUID]database.Payment),
	}
}

func (f *fakePaymentStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.TenantID != arg.TenantID || o.IsDeleted() {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakePaymentStore) CountPaymentsByNumberPrefix(ctx context.Context, arg database.CountPaymentsByNumberPrefixParams) (int64, error) {
	var count int64
	for _, p := range f.payments {
		if p.TenantID == arg.TenantID && strings.HasPrefix(p.PaymentNumber, arg.Prefix) {
			count++
		}
	}
	return count, nil
}

func (f *fakePaymentStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	p := database.Payment{
		ID:             uuid.New(),
		TenantID:       arg.TenantID,
		OrderID:        arg.OrderID,
		PaymentNumber:  arg.PaymentNumber,
		PaymentDate:    arg.PaymentDate,
		Amount:         arg.Amount,
		Method:         arg.Method,
		TransactionRef: arg.TransactionRef,
		UpiID:          arg.UpiID,
		Notes:          arg.Notes,
		Status:         arg.Status,
	}
	p.CreatedBy = arg.CreatedBy
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakePaymentStore) GetPayment(ctx context.Context, arg database.GetPaymentParams) (database.Payment, error) {
	p, ok := f.payments[arg.ID]
	if !ok || p.TenantID != arg.TenantID || p.IsDeleted() {
		return database.Payment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakePaymentStore) ListPaymentsByOrder(ctx context.Context, arg database.ListPaymentsByOrderParams) ([]database.Payment, error) {
	var out []database.Payment
	for _, p := range f.payments {
		if p.OrderID == arg.OrderID && p.TenantID == arg.TenantID && !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error) {
	var out []database.Payment
	for _, p := range f.payments {
		if p.TenantID == arg.TenantID && !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) SumCompletedPaymentsByOrder(ctx context.Context, arg database.SumCompletedPaymentsByOrderParams) (pgtype.Numeric, error) {
	total := database.NumericToDecimal(makeNumeric("0"))
	for _, p := range f.payments {
		if p.OrderID == arg.OrderID && p.TenantID == arg.TenantID && p.Status == enum.PaymentStatusCompleted && !p.IsDeleted() {
			total = total.Add(database.NumericToDecimal(p.Amount))
		}
	}
	return database.DecimalToNumeric(total), nil
}

func (f *fakePaymentStore) UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error) {
	p, ok := f.payments[arg.ID]
	if !ok || p.TenantID != arg.TenantID || p.IsDeleted() || p.Version != arg.Version {
		return database.Payment{}, pgx.ErrNoRows
	}
	p.Status = arg.Status
	if arg.Notes.Valid {
		p.Notes = arg.Notes
	}
	p.UpdatedBy = arg.UpdatedBy
	p.Version++
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakePaymentStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok || o.TenantID != arg.TenantID || o.IsDeleted() || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.AdvanceAmount = arg.AdvanceAmount
	o.BalanceAmount = arg.BalanceAmount
	o.UpdatedBy = arg.UpdatedBy
	o.Version++
	f.orders[o.ID] = o
	return o, nil
}

func newTestPaymentService(store *fakePaymentStore) *PaymentService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) PaymentStore { return store }
	return NewPaymentService(pool, newStore)
}

// seedOrder places an APPROVED order with the given total and zero advance.
func seedOrder(store *fakePaymentStore, tenantID uuid.UUID, total string) database.Order {
	o := database.Order{
		ID:            uuid.New(),
		TenantID:      tenantID,
		OrderNumber:   "ORD-20250115-0001",
		Status:        enum.OrderStatusApproved,
		TotalAmount:   makeNumeric(total),
		AdvanceAmount: makeNumeric("0.00"),
		BalanceAmount: makeNumeric(total),
	}
	store.orders[o.ID] = o
	return o
}

func TestRecordPayment_UpdatesAdvanceAndBalance(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	order := seedOrder(store, tenantID, "6372.00")
	svc := newTestPaymentService(store)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID:  tenantID,
		OrderID:   order.ID,
		CreatedBy: uuid.New(),
		Amount:    "2000.00",
		Method:    enum.PaymentMethodUPI,
		UpiID:     "ravi@upi",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	wantNumber := fmt.Sprintf("PAY-%s-0001", time.Now().Format("20060102"))
	if result.Payment.PaymentNumber != wantNumber {
		t.Errorf("payment number: got %s, want %s", result.Payment.PaymentNumber, wantNumber)
	}
	if result.Payment.Status != enum.PaymentStatusCompleted {
		t.Errorf("payment status: got %s, want COMPLETED", result.Payment.Status)
	}
	if !numericEquals(result.Order.AdvanceAmount, "2000.00") {
		t.Errorf("advance: got %s, want 2000.00", database.NumericToDecimal(result.Order.AdvanceAmount))
	}
	if !numericEquals(result.Order.BalanceAmount, "4372.00") {
		t.Errorf("balance: got %s, want 4372.00", database.NumericToDecimal(result.Order.BalanceAmount))
	}
	if result.OverpaymentWarning {
		t.Error("no overpayment expected")
	}
}

func TestRecordPayment_OverpaymentWarnsButAccepts(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	order := seedOrder(store, tenantID, "1000.00")
	svc := newTestPaymentService(store)

	result, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID:  tenantID,
		OrderID:   order.ID,
		CreatedBy: uuid.New(),
		Amount:    "1250.00",
		Method:    enum.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("overpayment must be accepted, got: %v", err)
	}
	if !result.OverpaymentWarning {
		t.Error("expected overpayment warning")
	}
	if !numericEquals(result.Order.BalanceAmount, "-250.00") {
		t.Errorf("balance: got %s, want -250.00 (signed, not clamped)",
			database.NumericToDecimal(result.Order.BalanceAmount))
	}
}

func TestRecordPayment_SequentialNumbers(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	order := seedOrder(store, tenantID, "5000.00")
	svc := newTestPaymentService(store)

	for i := 1; i <= 3; i++ {
		result, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
			TenantID:  tenantID,
			OrderID:   order.ID,
			CreatedBy: uuid.New(),
			Amount:    "100.00",
			Method:    enum.PaymentMethodCash,
		})
		if err != nil {
			t.Fatalf("payment %d: %v", i, err)
		}
		want := fmt.Sprintf("PAY-%s-%04d", time.Now().Format("20060102"), i)
		if result.Payment.PaymentNumber != want {
			t.Errorf("payment %d number: got %s, want %s", i, result.Payment.PaymentNumber, want)
		}
	}
}

func TestRecordPayment_RejectsCancelledOrder(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	order := seedOrder(store, tenantID, "5000.00")
	order.Status = enum.OrderStatusCancelled
	store.orders[order.ID] = order
	svc := newTestPaymentService(store)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID:  tenantID,
		OrderID:   order.ID,
		CreatedBy: uuid.New(),
		Amount:    "100.00",
		Method:    enum.PaymentMethodCash,
	})

	var inv *apperr.InvalidOperation
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidOperation, got: %v", err)
	}
}

func TestRecordPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestPaymentService(newFakePaymentStore())

	for _, amount := range []string{"0", "-50.00", "abc"} {
		_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
			TenantID:  uuid.New(),
			OrderID:   uuid.New(),
			CreatedBy: uuid.New(),
			Amount:    amount,
			Method:    enum.PaymentMethodCash,
		})
		var v *apperr.Validation
		if !errors.As(err, &v) || v.Field != "amount" {
			t.Errorf("amount %q: expected validation error, got: %v", amount, err)
		}
	}
}

func TestRecordPayment_RejectsUnknownMethod(t *testing.T) {
	svc := newTestPaymentService(newFakePaymentStore())

	_, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID:  uuid.New(),
		OrderID:   uuid.New(),
		CreatedBy: uuid.New(),
		Amount:    "100.00",
		Method:    "BARTER",
	})

	var v *apperr.Validation
	if !errors.As(err, &v) || v.Field != "payment_method" {
		t.Fatalf("expected payment_method validation error, got: %v", err)
	}
}

func TestRefund_ReversesAdvance(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	order := seedOrder(store, tenantID, "6000.00")
	svc := newTestPaymentService(store)

	first, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID: tenantID, OrderID: order.ID, CreatedBy: uuid.New(),
		Amount: "2000.00", Method: enum.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if _, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID: tenantID, OrderID: order.ID, CreatedBy: uuid.New(),
		Amount: "1000.00", Method: enum.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	result, err := svc.Refund(context.Background(), RefundRequest{
		TenantID:  tenantID,
		OrderID:   order.ID,
		PaymentID: first.Payment.ID,
		Version:   first.Payment.Version,
		UserID:    uuid.New(),
		Reason:    "duplicate entry",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	if result.Payment.Status != enum.PaymentStatusRefunded {
		t.Errorf("payment status: got %s, want REFUNDED", result.Payment.Status)
	}
	// Only the second payment still counts.
	if !numericEquals(result.Order.AdvanceAmount, "1000.00") {
		t.Errorf("advance: got %s, want 1000.00", database.NumericToDecimal(result.Order.AdvanceAmount))
	}
	if !numericEquals(result.Order.BalanceAmount, "5000.00") {
		t.Errorf("balance: got %s, want 5000.00", database.NumericToDecimal(result.Order.BalanceAmount))
	}
}

func TestRefund_OnlyCompletedPayments(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	order := seedOrder(store, tenantID, "6000.00")
	svc := newTestPaymentService(store)

	first, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID: tenantID, OrderID: order.ID, CreatedBy: uuid.New(),
		Amount: "2000.00", Method: enum.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	refunded, err := svc.Refund(context.Background(), RefundRequest{
		TenantID: tenantID, OrderID: order.ID, PaymentID: first.Payment.ID,
		Version: first.Payment.Version, UserID: uuid.New(), Reason: "first",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	_, err = svc.Refund(context.Background(), RefundRequest{
		TenantID: tenantID, OrderID: order.ID, PaymentID: first.Payment.ID,
		Version: refunded.Payment.Version, UserID: uuid.New(), Reason: "again",
	})

	var inv *apperr.InvalidOperation
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidOperation on double refund, got: %v", err)
	}
}

func TestRefund_PaymentFromOtherOrderInvisible(t *testing.T) {
	store := newFakePaymentStore()
	tenantID := uuid.New()
	orderA := seedOrder(store, tenantID, "6000.00")
	orderB := seedOrder(store, tenantID, "3000.00")
	svc := newTestPaymentService(store)

	paid, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		TenantID: tenantID, OrderID: orderA.ID, CreatedBy: uuid.New(),
		Amount: "500.00", Method: enum.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	_, err = svc.Refund(context.Background(), RefundRequest{
		TenantID: tenantID, OrderID: orderB.ID, PaymentID: paid.Payment.ID,
		Version: paid.Payment.Version, UserID: uuid.New(), Reason: "wrong order",
	})

	var nf *apperr.NotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFound, got: %v", err)
	}
}
