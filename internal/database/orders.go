package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, order_number, customer_id, event_type_id,
	event_date, event_time, venue_name, venue_address, guest_count,
	menu_subtotal, utility_subtotal, subtotal, discount_percent, discount_amount,
	tax_percent, tax_amount, total_amount, advance_amount, balance_amount,
	status, notes,
	submitted_at, submitted_by, approved_at, approved_by,
	rejected_at, rejected_by, rejection_reason,
	cancelled_at, cancelled_by, cancellation_reason,
	completed_at, completed_by,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID, &o.EventTypeID,
		&o.EventDate, &o.EventTime, &o.VenueName, &o.VenueAddr, &o.GuestCount,
		&o.MenuSubtotal, &o.UtilitySubtotal, &o.Subtotal, &o.DiscountPercent, &o.DiscountAmount,
		&o.TaxPercent, &o.TaxAmount, &o.TotalAmount, &o.AdvanceAmount, &o.BalanceAmount,
		&o.Status, &o.Notes,
		&o.SubmittedAt, &o.SubmittedBy, &o.ApprovedAt, &o.ApprovedBy,
		&o.RejectedAt, &o.RejectedBy, &o.RejectionReason,
		&o.CancelledAt, &o.CancelledBy, &o.CancellationReason,
		&o.CompletedAt, &o.CompletedBy,
		&o.CreatedAt, &o.UpdatedAt, &o.CreatedBy, &o.UpdatedBy, &o.Version, &o.DeletedAt,
	)
	return o, err
}

type CountOrdersByNumberPrefixParams struct {
	TenantID uuid.UUID
	Prefix   string
}

// CountOrdersByNumberPrefix counts today's orders for number generation.
// Soft-deleted rows are included on purpose: a tombstoned order still holds
// its number, so the sequence must not reuse it.
func (q *Queries) CountOrdersByNumberPrefix(ctx context.Context, arg CountOrdersByNumberPrefixParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE tenant_id = $1 AND order_number LIKE $2 || '%'`,
		arg.TenantID, arg.Prefix).Scan(&count)
	return count, err
}

type CreateOrderParams struct {
	TenantID    uuid.UUID
	OrderNumber string
	CustomerID  uuid.UUID
	EventTypeID uuid.UUID
	EventDate   pgtype.Date
	EventTime   pgtype.Time
	VenueName   pgtype.Text
	VenueAddr   pgtype.Text
	GuestCount  int32

	MenuSubtotal    pgtype.Numeric
	UtilitySubtotal pgtype.Numeric
	Subtotal        pgtype.Numeric
	DiscountPercent pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TaxPercent      pgtype.Numeric
	TaxAmount       pgtype.Numeric
	TotalAmount     pgtype.Numeric
	AdvanceAmount   pgtype.Numeric
	BalanceAmount   pgtype.Numeric

	Status    string
	Notes     pgtype.Text
	CreatedBy pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (tenant_id, order_number, customer_id, event_type_id,
			event_date, event_time, venue_name, venue_address, guest_count,
			menu_subtotal, utility_subtotal, subtotal, discount_percent, discount_amount,
			tax_percent, tax_amount, total_amount, advance_amount, balance_amount,
			status, notes, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $22)
		RETURNING `+orderColumns,
		arg.TenantID, arg.OrderNumber, arg.CustomerID, arg.EventTypeID,
		arg.EventDate, arg.EventTime, arg.VenueName, arg.VenueAddr, arg.GuestCount,
		arg.MenuSubtotal, arg.UtilitySubtotal, arg.Subtotal, arg.DiscountPercent, arg.DiscountAmount,
		arg.TaxPercent, arg.TaxAmount, arg.TotalAmount, arg.AdvanceAmount, arg.BalanceAmount,
		arg.Status, arg.Notes, arg.CreatedBy)
	return scanOrder(row)
}

type GetOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, arg.ID, arg.TenantID)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the rest of the transaction so
// concurrent payment inserts against the same order serialize.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		FOR NO KEY UPDATE`, arg.ID, arg.TenantID)
	return scanOrder(row)
}

// GetOrderIncludingDeleted bypasses the tombstone filter; restore tooling only.
func (q *Queries) GetOrderIncludingDeleted(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND tenant_id = $2`, arg.ID, arg.TenantID)
	return scanOrder(row)
}

type ListOrdersParams struct {
	TenantID      uuid.UUID
	Status        pgtype.Text
	CustomerID    pgtype.UUID
	EventDateFrom pgtype.Date
	EventDateTo   pgtype.Date
	Limit         int32
	Offset        int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR customer_id = $3)
		  AND ($4::date IS NULL OR event_date >= $4)
		  AND ($5::date IS NULL OR event_date <= $5)
		ORDER BY event_date DESC, order_number DESC
		LIMIT $6 OFFSET $7`,
		arg.TenantID, arg.Status, arg.CustomerID, arg.EventDateFrom, arg.EventDateTo,
		arg.Limit, arg.Offset)
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

type UpdateOrderDetailsParams struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Version     int64
	CustomerID  uuid.UUID
	EventTypeID uuid.UUID
	EventDate   pgtype.Date
	EventTime   pgtype.Time
	VenueName   pgtype.Text
	VenueAddr   pgtype.Text
	GuestCount  int32
	Notes       pgtype.Text

	MenuSubtotal    pgtype.Numeric
	UtilitySubtotal pgtype.Numeric
	Subtotal        pgtype.Numeric
	DiscountPercent pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TaxPercent      pgtype.Numeric
	TaxAmount       pgtype.Numeric
	TotalAmount     pgtype.Numeric
	AdvanceAmount   pgtype.Numeric
	BalanceAmount   pgtype.Numeric

	UpdatedBy pgtype.UUID
}

// UpdateOrderDetails rewrites the editable fields of a DRAFT order together
// with its recomputed totals, compare-and-swapped on version.
func (q *Queries) UpdateOrderDetails(ctx context.Context, arg UpdateOrderDetailsParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET
			customer_id = $4, event_type_id = $5, event_date = $6, event_time = $7,
			venue_name = $8, venue_address = $9, guest_count = $10, notes = $11,
			menu_subtotal = $12, utility_subtotal = $13, subtotal = $14,
			discount_percent = $15, discount_amount = $16, tax_percent = $17, tax_amount = $18,
			total_amount = $19, advance_amount = $20, balance_amount = $21,
			updated_by = $22, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+orderColumns,
		arg.ID, arg.TenantID, arg.Version,
		arg.CustomerID, arg.EventTypeID, arg.EventDate, arg.EventTime,
		arg.VenueName, arg.VenueAddr, arg.GuestCount, arg.Notes,
		arg.MenuSubtotal, arg.UtilitySubtotal, arg.Subtotal,
		arg.DiscountPercent, arg.DiscountAmount, arg.TaxPercent, arg.TaxAmount,
		arg.TotalAmount, arg.AdvanceAmount, arg.BalanceAmount,
		arg.UpdatedBy)
	return scanOrder(row)
}

type UpdateOrderTotalsParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Version  int64

	MenuSubtotal    pgtype.Numeric
	UtilitySubtotal pgtype.Numeric
	Subtotal        pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TaxAmount       pgtype.Numeric
	TotalAmount     pgtype.Numeric
	AdvanceAmount   pgtype.Numeric
	BalanceAmount   pgtype.Numeric

	UpdatedBy pgtype.UUID
}

// UpdateOrderTotals persists a recalculation after line-item changes or
// payment activity. Children are written before this, and the version bump
// rides on the same statement, so a reader can never observe a stale total
// next to a bumped version.
func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET
			menu_subtotal = $4, utility_subtotal = $5, subtotal = $6,
			discount_amount = $7, tax_amount = $8, total_amount = $9,
			advance_amount = $10, balance_amount = $11,
			updated_by = $12, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+orderColumns,
		arg.ID, arg.TenantID, arg.Version,
		arg.MenuSubtotal, arg.UtilitySubtotal, arg.Subtotal,
		arg.DiscountAmount, arg.TaxAmount, arg.TotalAmount,
		arg.AdvanceAmount, arg.BalanceAmount,
		arg.UpdatedBy)
	return scanOrder(row)
}

type UpdateOrderStatusParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Version  int64
	Status   string

	MenuSubtotal    pgtype.Numeric
	UtilitySubtotal pgtype.Numeric
	Subtotal        pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TaxAmount       pgtype.Numeric
	TotalAmount     pgtype.Numeric
	AdvanceAmount   pgtype.Numeric
	BalanceAmount   pgtype.Numeric

	SubmittedAt        pgtype.Timestamptz
	SubmittedBy        pgtype.UUID
	ApprovedAt         pgtype.Timestamptz
	ApprovedBy         pgtype.UUID
	RejectedAt         pgtype.Timestamptz
	RejectedBy         pgtype.UUID
	RejectionReason    pgtype.Text
	CancelledAt        pgtype.Timestamptz
	CancelledBy        pgtype.UUID
	CancellationReason pgtype.Text
	CompletedAt        pgtype.Timestamptz
	CompletedBy        pgtype.UUID

	UpdatedBy pgtype.UUID
}

// UpdateOrderStatus applies a workflow transition: new status, recomputed
// totals, and the transition's audit stamp. NULL stamp params keep the
// existing values, so each transition only writes its own columns.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET
			status = $4,
			menu_subtotal = $5, utility_subtotal = $6, subtotal = $7,
			discount_amount = $8, tax_amount = $9, total_amount = $10,
			advance_amount = $11, balance_amount = $12,
			submitted_at = COALESCE($13, submitted_at), submitted_by = COALESCE($14, submitted_by),
			approved_at = COALESCE($15, approved_at), approved_by = COALESCE($16, approved_by),
			rejected_at = COALESCE($17, rejected_at), rejected_by = COALESCE($18, rejected_by),
			rejection_reason = COALESCE($19, rejection_reason),
			cancelled_at = COALESCE($20, cancelled_at), cancelled_by = COALESCE($21, cancelled_by),
			cancellation_reason = COALESCE($22, cancellation_reason),
			completed_at = COALESCE($23, completed_at), completed_by = COALESCE($24, completed_by),
			updated_by = $25, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+orderColumns,
		arg.ID, arg.TenantID, arg.Version, arg.Status,
		arg.MenuSubtotal, arg.UtilitySubtotal, arg.Subtotal,
		arg.DiscountAmount, arg.TaxAmount, arg.TotalAmount,
		arg.AdvanceAmount, arg.BalanceAmount,
		arg.SubmittedAt, arg.SubmittedBy, arg.ApprovedAt, arg.ApprovedBy,
		arg.RejectedAt, arg.RejectedBy, arg.RejectionReason,
		arg.CancelledAt, arg.CancelledBy, arg.CancellationReason,
		arg.CompletedAt, arg.CompletedBy,
		arg.UpdatedBy)
	return scanOrder(row)
}

func (q *Queries) SoftDeleteOrder(ctx context.Context, arg SoftDeleteParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders SET deleted_at = now(), updated_by = $4, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL`,
		arg.ID, arg.TenantID, arg.Version, arg.UpdatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (q *Queries) RestoreOrder(ctx context.Context, arg RestoreParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET deleted_at = NULL, updated_by = $3, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NOT NULL
		RETURNING `+orderColumns,
		arg.ID, arg.TenantID, arg.UpdatedBy)
	return scanOrder(row)
}

// --- Owned line items ---

const orderMenuItemColumns = `id, order_id, menu_id, quantity, unit_price, subtotal, created_at`

func scanOrderMenuItem(row pgx.Row) (OrderMenuItem, error) {
	var it OrderMenuItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CreatedAt)
	return it, err
}

type CreateOrderMenuItemParams struct {
	OrderID   uuid.UUID
	MenuID    uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateOrderMenuItem(ctx context.Context, arg CreateOrderMenuItemParams) (OrderMenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_menu_items (order_id, menu_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderMenuItemColumns,
		arg.OrderID, arg.MenuID, arg.Quantity, arg.UnitPrice, arg.Subtotal)
	return scanOrderMenuItem(row)
}

func (q *Queries) ListOrderMenuItems(ctx context.Context, orderID uuid.UUID) ([]OrderMenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderMenuItemColumns+` FROM order_menu_items
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderMenuItem
	for rows.Next() {
		it, err := scanOrderMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type DeleteOrderLineParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) DeleteOrderMenuItem(ctx context.Context, arg DeleteOrderLineParams) error {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM order_menu_items WHERE id = $1 AND order_id = $2`,
		arg.ID, arg.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const orderUtilityColumns = `id, order_id, utility_id, quantity, unit_price, subtotal, created_at`

func scanOrderUtility(row pgx.Row) (OrderUtility, error) {
	var it OrderUtility
	err := row.Scan(&it.ID, &it.OrderID, &it.UtilityID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CreatedAt)
	return it, err
}

type CreateOrderUtilityParams struct {
	OrderID   uuid.UUID
	UtilityID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateOrderUtility(ctx context.Context, arg CreateOrderUtilityParams) (OrderUtility, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_utilities (order_id, utility_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderUtilityColumns,
		arg.OrderID, arg.UtilityID, arg.Quantity, arg.UnitPrice, arg.Subtotal)
	return scanOrderUtility(row)
}

func (q *Queries) ListOrderUtilities(ctx context.Context, orderID uuid.UUID) ([]OrderUtility, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderUtilityColumns+` FROM order_utilities
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderUtility
	for rows.Next() {
		it, err := scanOrderUtility(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteOrderUtility(ctx context.Context, arg DeleteOrderLineParams) error {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM order_utilities WHERE id = $1 AND order_id = $2`,
		arg.ID, arg.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
