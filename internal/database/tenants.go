package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tenantColumns = `id, tenant_code, business_name, contact_person, email, phone, address,
	status, subscription_start, subscription_end,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID, &t.TenantCode, &t.BusinessName, &t.ContactPerson, &t.Email, &t.Phone, &t.Address,
		&t.Status, &t.SubscriptionStart, &t.SubscriptionEnd,
		&t.CreatedAt, &t.UpdatedAt, &t.CreatedBy, &t.UpdatedBy, &t.Version, &t.DeletedAt,
	)
	return t, err
}

type CreateTenantParams struct {
	TenantCode        string
	BusinessName      string
	ContactPerson     pgtype.Text
	Email             pgtype.Text
	Phone             pgtype.Text
	Address           pgtype.Text
	Status            string
	SubscriptionStart pgtype.Date
	SubscriptionEnd   pgtype.Date
	CreatedBy         pgtype.UUID
}

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tenants (tenant_code, business_name, contact_person, email, phone, address,
			status, subscription_start, subscription_end, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+tenantColumns,
		arg.TenantCode, arg.BusinessName, arg.ContactPerson, arg.Email, arg.Phone, arg.Address,
		arg.Status, arg.SubscriptionStart, arg.SubscriptionEnd, arg.CreatedBy)
	return scanTenant(row)
}

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanTenant(row)
}

func (q *Queries) GetTenantByCode(ctx context.Context, code string) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE tenant_code = $1 AND deleted_at IS NULL`, code)
	return scanTenant(row)
}

type ListTenantsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListTenants(ctx context.Context, arg ListTenantsParams) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE deleted_at IS NULL
		ORDER BY business_name
		LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type UpdateTenantParams struct {
	ID                uuid.UUID
	Version           int64
	BusinessName      string
	ContactPerson     pgtype.Text
	Email             pgtype.Text
	Phone             pgtype.Text
	Address           pgtype.Text
	Status            string
	SubscriptionStart pgtype.Date
	SubscriptionEnd   pgtype.Date
	UpdatedBy         pgtype.UUID
}

// UpdateTenant is a compare-and-swap write; pgx.ErrNoRows means the caller
// held a stale version (or the tenant is gone).
func (q *Queries) UpdateTenant(ctx context.Context, arg UpdateTenantParams) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tenants SET
			business_name = $3, contact_person = $4, email = $5, phone = $6, address = $7,
			status = $8, subscription_start = $9, subscription_end = $10,
			updated_by = $11, updated_at = now(), version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING `+tenantColumns,
		arg.ID, arg.Version, arg.BusinessName, arg.ContactPerson, arg.Email, arg.Phone, arg.Address,
		arg.Status, arg.SubscriptionStart, arg.SubscriptionEnd, arg.UpdatedBy)
	return scanTenant(row)
}

type SoftDeleteTenantParams struct {
	ID        uuid.UUID
	Version   int64
	UpdatedBy pgtype.UUID
}

func (q *Queries) SoftDeleteTenant(ctx context.Context, arg SoftDeleteTenantParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE tenants SET deleted_at = now(), updated_by = $3, updated_at = now(), version = version + 1
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL`,
		arg.ID, arg.Version, arg.UpdatedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
