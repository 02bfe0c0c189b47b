package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Reporting reads. These aggregate committed state only and never join
// soft-deleted rows.

type UpcomingEventsParams struct {
	TenantID uuid.UUID
	From     pgtype.Date
	To       pgtype.Date
	Limit    int32
}

// UpcomingEvents returns confirmed work in the window: approved or in-progress
// orders by event date.
func (q *Queries) UpcomingEvents(ctx context.Context, arg UpcomingEventsParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND status IN ('APPROVED', 'IN_PROGRESS')
		  AND event_date >= $2 AND event_date <= $3
		ORDER BY event_date, event_time NULLS LAST
		LIMIT $4`, arg.TenantID, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type RevenueSummaryParams struct {
	TenantID uuid.UUID
	From     pgtype.Date
	To       pgtype.Date
}

type RevenueByMethodRow struct {
	Method string
	Count  int64
	Total  pgtype.Numeric
}

// RevenueByMethod sums COMPLETED payments in the date range, per method.
func (q *Queries) RevenueByMethod(ctx context.Context, arg RevenueSummaryParams) ([]RevenueByMethodRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT payment_method, count(*), COALESCE(sum(amount), 0)
		FROM payments
		WHERE tenant_id = $1 AND deleted_at IS NULL AND status = 'COMPLETED'
		  AND payment_date >= $2 AND payment_date <= $3
		GROUP BY payment_method
		ORDER BY payment_method`, arg.TenantID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RevenueByMethodRow
	for rows.Next() {
		var r RevenueByMethodRow
		if err := rows.Scan(&r.Method, &r.Count, &r.Total); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type OrderStatusCountRow struct {
	Status string
	Count  int64
}

// CountOrdersByStatus breaks the tenant's live orders down by status.
func (q *Queries) CountOrdersByStatus(ctx context.Context, tenantID uuid.UUID) ([]OrderStatusCountRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT status, count(*)
		FROM orders
		WHERE tenant_id = $1 AND deleted_at IS NULL
		GROUP BY status
		ORDER BY status`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OrderStatusCountRow
	for rows.Next() {
		var r OrderStatusCountRow
		if err := rows.Scan(&r.Status, &r.Count); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type OutstandingBalancesParams struct {
	TenantID uuid.UUID
	Limit    int32
	Offset   int32
}

// OutstandingBalances lists live orders that still have money owed, largest
// balance first. Cancelled orders don't owe anything.
func (q *Queries) OutstandingBalances(ctx context.Context, arg OutstandingBalancesParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND status NOT IN ('DRAFT', 'CANCELLED')
		  AND balance_amount > 0
		ORDER BY balance_amount DESC
		LIMIT $2 OFFSET $3`, arg.TenantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
