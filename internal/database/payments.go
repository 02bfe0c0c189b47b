package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, tenant_id, order_id, payment_number, payment_date,
	amount, payment_method, transaction_ref, upi_id, notes, status,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.TenantID, &p.OrderID, &p.PaymentNumber, &p.PaymentDate,
		&p.Amount, &p.Method, &p.TransactionRef, &p.UpiID, &p.Notes, &p.Status,
		&p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy, &p.Version, &p.DeletedAt,
	)
	return p, err
}

type CountPaymentsByNumberPrefixParams struct {
	TenantID uuid.UUID
	Prefix   string
}

func (q *Queries) CountPaymentsByNumberPrefix(ctx context.Context, arg CountPaymentsByNumberPrefixParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM payments
		WHERE tenant_id = $1 AND payment_number LIKE $2 || '%'`,
		arg.TenantID, arg.Prefix).Scan(&count)
	return count, err
}

type CreatePaymentParams struct {
	TenantID       uuid.UUID
	OrderID        uuid.UUID
	PaymentNumber  string
	PaymentDate    pgtype.Date
	Amount         pgtype.Numeric
	Method         string
	TransactionRef pgtype.Text
	UpiID          pgtype.Text
	Notes          pgtype.Text
	Status         string
	CreatedBy      pgtype.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (tenant_id, order_id, payment_number, payment_date,
			amount, payment_method, transaction_ref, upi_id, notes, status, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING `+paymentColumns,
		arg.TenantID, arg.OrderID, arg.PaymentNumber, arg.PaymentDate,
		arg.Amount, arg.Method, arg.TransactionRef, arg.UpiID, arg.Notes, arg.Status, arg.CreatedBy)
	return scanPayment(row)
}

type GetPaymentParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetPayment(ctx context.Context, arg GetPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, arg.ID, arg.TenantID)
	return scanPayment(row)
}

type ListPaymentsByOrderParams struct {
	OrderID  uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, arg ListPaymentsByOrderParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		ORDER BY payment_date, payment_number`, arg.OrderID, arg.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type ListPaymentsParams struct {
	TenantID uuid.UUID
	Status   pgtype.Text
	DateFrom pgtype.Date
	DateTo   pgtype.Date
	Limit    int32
	Offset   int32
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::date IS NULL OR payment_date >= $3)
		  AND ($4::date IS NULL OR payment_date <= $4)
		ORDER BY payment_date DESC, payment_number DESC
		LIMIT $5 OFFSET $6`,
		arg.TenantID, arg.Status, arg.DateFrom, arg.DateTo, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type SumCompletedPaymentsByOrderParams struct {
	OrderID  uuid.UUID
	TenantID uuid.UUID
}

// SumCompletedPaymentsByOrder returns the confirmed money received against an
// order. Refunded and failed rows do not count.
func (q *Queries) SumCompletedPaymentsByOrder(ctx context.Context, arg SumCompletedPaymentsByOrderParams) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0) FROM payments
		WHERE order_id = $1 AND tenant_id = $2 AND status = 'COMPLETED' AND deleted_at IS NULL`,
		arg.OrderID, arg.TenantID).Scan(&sum)
	return sum, err
}

type UpdatePaymentStatusParams struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int64
	Status    string
	Notes     pgtype.Text
	UpdatedBy pgtype.UUID
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE payments SET status = $4, notes = COALESCE($5, notes),
			updated_by = $6, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+paymentColumns,
		arg.ID, arg.TenantID, arg.Version, arg.Status, arg.Notes, arg.UpdatedBy)
	return scanPayment(row)
}
