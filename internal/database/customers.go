package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, tenant_id, customer_code, name, phone, email, address,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.TenantID, &c.CustomerCode, &c.Name, &c.Phone, &c.Email, &c.Address,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy, &c.Version, &c.DeletedAt,
	)
	return c, err
}

type CreateCustomerParams struct {
	TenantID     uuid.UUID
	CustomerCode string
	Name         string
	Phone        pgtype.Text
	Email        pgtype.Text
	Address      pgtype.Text
	CreatedBy    pgtype.UUID
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO customers (tenant_id, customer_code, name, phone, email, address, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+customerColumns,
		arg.TenantID, arg.CustomerCode, arg.Name, arg.Phone, arg.Email, arg.Address, arg.CreatedBy)
	return scanCustomer(row)
}

type GetCustomerParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetCustomer(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, arg.ID, arg.TenantID)
	return scanCustomer(row)
}

// GetCustomerIncludingDeleted bypasses the tombstone filter; restore tooling
// only, never a business read path.
func (q *Queries) GetCustomerIncludingDeleted(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE id = $1 AND tenant_id = $2`, arg.ID, arg.TenantID)
	return scanCustomer(row)
}

type ListCustomersParams struct {
	TenantID uuid.UUID
	Search   pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%' OR phone ILIKE '%' || $2 || '%')
		ORDER BY name
		LIMIT $3 OFFSET $4`, arg.TenantID, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

type UpdateCustomerParams struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int64
	Name      string
	Phone     pgtype.Text
	Email     pgtype.Text
	Address   pgtype.Text
	UpdatedBy pgtype.UUID
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE customers SET
			name = $4, phone = $5, email = $6, address = $7,
			updated_by = $8, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+customerColumns,
		arg.ID, arg.TenantID, arg.Version, arg.Name, arg.Phone, arg.Email, arg.Address, arg.UpdatedBy)
	return scanCustomer(row)
}

type SoftDeleteParams struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int64
	UpdatedBy pgtype.UUID
}

func (q *Queries) SoftDeleteCustomer(ctx context.Context, arg SoftDeleteParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE customers SET deleted_at = now(), updated_by = $4, updated_at = now(), version = version + 1
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

type RestoreParams struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UpdatedBy pgtype.UUID
}

func (q *Queries) RestoreCustomer(ctx context.Context, arg RestoreParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE customers SET deleted_at = NULL, updated_by = $3, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NOT NULL
		RETURNING `+customerColumns,
		arg.ID, arg.TenantID, arg.UpdatedBy)
	return scanCustomer(row)
}
