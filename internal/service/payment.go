package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/smtech/caterer-api/internal/apperr"
	"github.com/smtech/caterer-api/internal/calc"
	"github.com/smtech/caterer-api/internal/database"
	"github.com/smtech/caterer-api/internal/enum"
	"github.com/smtech/caterer-api/internal/tenancy"
)

// PaymentStore defines the DB methods the payment service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	CountPaymentsByNumberPrefix(ctx context.Context, arg database.CountPaymentsByNumberPrefixParams) (int64, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, arg database.GetPaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, arg database.ListPaymentsByOrderParams) ([]database.Payment, error)
	ListPayments(ctx context.Context, arg database.ListPaymentsParams) ([]database.Payment, error)
	SumCompletedPaymentsByOrder(ctx context.Context, arg database.SumCompletedPaymentsByOrderParams) (pgtype.Numeric, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentService owns the payment ledger and keeps the order's advance and
// balance columns reconciled with it. The order row is locked for the span
// of every ledger write, so concurrent payments against one order serialize.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
}

func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore}
}

// RecordPaymentRequest is the validated input for recording a payment.
type RecordPaymentRequest struct {
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	CreatedBy uuid.UUID

	Amount         string
	Method         string
	PaymentDate    string // YYYY-MM-DD, optional, defaults to today
	TransactionRef string
	UpiID          string
	Notes          string
}

// PaymentResult is the recorded payment plus the reconciled order.
// OverpaymentWarning is set when the balance went negative; the payment is
// still accepted.
type PaymentResult struct {
	Payment            database.Payment
	Order              database.Order
	OverpaymentWarning bool
}

// RecordPayment appends a COMPLETED ledger entry and moves the order's
// advance and balance in the same transaction. Overpayment warns, never
// rejects: a caterer taking extra money up front is a business event, not an
// input error.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if !validPaymentMethod(req.Method) {
		return nil, &apperr.Validation{Field: "payment_method", Message: "unknown method"}
	}
	paymentDate, err := parsePaymentDate(req.PaymentDate)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.recordTx(ctx, req, amount, paymentDate)
		if err == nil {
			return result, nil
		}
		if database.UniqueViolation(err, "payments_number_key") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *PaymentService) recordTx(ctx context.Context, req RecordPaymentRequest, amount decimal.Decimal, paymentDate pgtype.Date) (*PaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: req.OrderID.String()}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCancelled {
		return nil, &apperr.InvalidOperation{Message: "cannot record payment on a cancelled order"}
	}

	prefix := fmt.Sprintf("PAY-%s-", time.Now().Format("20060102"))
	count, err := store.CountPaymentsByNumberPrefix(ctx, database.CountPaymentsByNumberPrefixParams{
		TenantID: req.TenantID,
		Prefix:   prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("count payments by prefix: %w", err)
	}
	paymentNumber := fmt.Sprintf("%s%04d", prefix, count+1)

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		TenantID:       req.TenantID,
		OrderID:        req.OrderID,
		PaymentNumber:  paymentNumber,
		PaymentDate:    paymentDate,
		Amount:         database.DecimalToNumeric(amount),
		Method:         req.Method,
		TransactionRef: textOrNull(req.TransactionRef),
		UpiID:          textOrNull(req.UpiID),
		Notes:          textOrNull(req.Notes),
		Status:         enum.PaymentStatusCompleted,
		CreatedBy:      pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	updated, warning, err := s.reconcile(ctx, store, order, req.CreatedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PaymentResult{Payment: payment, Order: updated, OverpaymentWarning: warning}, nil
}

// RefundRequest asks to flip one COMPLETED payment to REFUNDED.
type RefundRequest struct {
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	PaymentID uuid.UUID
	Version   int64
	UserID    uuid.UUID
	Reason    string
}

// Refund marks a COMPLETED payment REFUNDED and reconciles the order. The
// ledger row stays; only its status changes.
func (s *PaymentService) Refund(ctx context.Context, req RefundRequest) (*PaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: req.OrderID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "order", Field: "id", Value: req.OrderID.String()}
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	payment, err := store.GetPayment(ctx, database.GetPaymentParams{ID: req.PaymentID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.NotFound{Entity: "payment", Field: "id", Value: req.PaymentID.String()}
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment.OrderID != req.OrderID {
		return nil, &apperr.NotFound{Entity: "payment", Field: "id", Value: req.PaymentID.String()}
	}
	if err := tenancy.Check(order.TenantID, payment.TenantID); err != nil {
		return nil, err
	}
	if payment.Status != enum.PaymentStatusCompleted {
		return nil, &apperr.InvalidOperation{Message: fmt.Sprintf("cannot refund payment in %s status", payment.Status)}
	}

	refunded, err := store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
		ID:        req.PaymentID,
		TenantID:  req.TenantID,
		Version:   req.Version,
		Status:    enum.PaymentStatusRefunded,
		Notes:     textOrNull(req.Reason),
		UpdatedBy: pgtype.UUID{Bytes: req.UserID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperr.Conflict{Entity: "payment", ID: req.PaymentID}
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	updated, _, err := s.reconcile(ctx, store, order, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &PaymentResult{Payment: refunded, Order: updated}, nil
}

// ListByOrder returns the order's ledger in payment-date order.
func (s *PaymentService) ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	payments, err := store.ListPaymentsByOrder(ctx, database.ListPaymentsByOrderParams{OrderID: orderID, TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return payments, nil
}

// reconcile recomputes the order's advance from the COMPLETED ledger sum and
// rewrites advance and balance, leaving every other total untouched. Balance
// is total minus advance, signed: negative means overpayment, which is
// logged and flagged but accepted.
func (s *PaymentService) reconcile(ctx context.Context, store PaymentStore, order database.Order, by uuid.UUID) (database.Order, bool, error) {
	sum, err := store.SumCompletedPaymentsByOrder(ctx, database.SumCompletedPaymentsByOrderParams{
		OrderID:  order.ID,
		TenantID: order.TenantID,
	})
	if err != nil {
		return database.Order{}, false, fmt.Errorf("sum payments: %w", err)
	}

	advance := database.NumericToDecimal(sum)
	total := database.NumericToDecimal(order.TotalAmount)
	balance := calc.Balance(total, advance)

	warning := balance.IsNegative()
	if warning {
		log.Printf("WARN: order %s overpaid: total=%s paid=%s balance=%s",
			order.OrderNumber, total.StringFixed(2), advance.StringFixed(2), balance.StringFixed(2))
	}

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:              order.ID,
		TenantID:        order.TenantID,
		Version:         order.Version,
		MenuSubtotal:    order.MenuSubtotal,
		UtilitySubtotal: order.UtilitySubtotal,
		Subtotal:        order.Subtotal,
		DiscountAmount:  order.DiscountAmount,
		TaxAmount:       order.TaxAmount,
		TotalAmount:     order.TotalAmount,
		AdvanceAmount:   database.DecimalToNumeric(advance),
		BalanceAmount:   database.DecimalToNumeric(balance),
		UpdatedBy:       pgtype.UUID{Bytes: by, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, false, &apperr.Conflict{Entity: "order", ID: order.ID}
		}
		return database.Order{}, false, fmt.Errorf("update order totals: %w", err)
	}
	return updated, warning, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &apperr.Validation{Field: "amount", Message: "invalid number"}
	}
	if !d.IsPositive() {
		return decimal.Zero, &apperr.Validation{Field: "amount", Message: "must be greater than zero"}
	}
	return d.Round(2), nil
}

func parsePaymentDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{Time: time.Now(), Valid: true}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, &apperr.Validation{Field: "payment_date", Message: "must be YYYY-MM-DD"}
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func validPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodUPI,
		enum.PaymentMethodBankTransfer, enum.PaymentMethodCheque, enum.PaymentMethodOther:
		return true
	}
	return false
}
