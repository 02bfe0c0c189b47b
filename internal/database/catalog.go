package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Reference-data queries for the tenant catalog: event types, menus and
// utilities. These carry no invariants beyond per-tenant uniqueness, so they
// share the CRUD shape.

const eventTypeColumns = `id, tenant_id, event_code, name,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanEventType(row pgx.Row) (EventType, error) {
	var e EventType
	err := row.Scan(
		&e.ID, &e.TenantID, &e.EventCode, &e.Name,
		&e.CreatedAt, &e.UpdatedAt, &e.CreatedBy, &e.UpdatedBy, &e.Version, &e.DeletedAt,
	)
	return e, err
}

type CreateEventTypeParams struct {
	TenantID  uuid.UUID
	EventCode string
	Name      string
	CreatedBy pgtype.UUID
}

func (q *Queries) CreateEventType(ctx context.Context, arg CreateEventTypeParams) (EventType, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO event_types (tenant_id, event_code, name, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+eventTypeColumns,
		arg.TenantID, arg.EventCode, arg.Name, arg.CreatedBy)
	return scanEventType(row)
}

type GetEventTypeParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetEventType(ctx context.Context, arg GetEventTypeParams) (EventType, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+eventTypeColumns+` FROM event_types
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, arg.ID, arg.TenantID)
	return scanEventType(row)
}

func (q *Queries) ListEventTypes(ctx context.Context, tenantID uuid.UUID) ([]EventType, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+eventTypeColumns+` FROM event_types
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []EventType
	for rows.Next() {
		e, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, e)
	}
	return types, rows.Err()
}

type UpdateEventTypeParams struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int64
	Name      string
	UpdatedBy pgtype.UUID
}

func (q *Queries) UpdateEventType(ctx context.Context, arg UpdateEventTypeParams) (EventType, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE event_types SET name = $4, updated_by = $5, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+eventTypeColumns,
		arg.ID, arg.TenantID, arg.Version, arg.Name, arg.UpdatedBy)
	return scanEventType(row)
}

func (q *Queries) SoftDeleteEventType(ctx context.Context, arg SoftDeleteParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE event_types SET deleted_at = now(), updated_by = $4, updated_at = now(), version = version + 1
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

const menuColumns = `id, tenant_id, menu_code, name, description, unit_price,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanMenu(row pgx.Row) (Menu, error) {
	var m Menu
	err := row.Scan(
		&m.ID, &m.TenantID, &m.MenuCode, &m.Name, &m.Description, &m.UnitPrice,
		&m.CreatedAt, &m.UpdatedAt, &m.CreatedBy, &m.UpdatedBy, &m.Version, &m.DeletedAt,
	)
	return m, err
}

type CreateMenuParams struct {
	TenantID    uuid.UUID
	MenuCode    string
	Name        string
	Description pgtype.Text
	UnitPrice   pgtype.Numeric
	CreatedBy   pgtype.UUID
}

func (q *Queries) CreateMenu(ctx context.Context, arg CreateMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menus (tenant_id, menu_code, name, description, unit_price, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+menuColumns,
		arg.TenantID, arg.MenuCode, arg.Name, arg.Description, arg.UnitPrice, arg.CreatedBy)
	return scanMenu(row)
}

type GetMenuParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetMenu(ctx context.Context, arg GetMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+menuColumns+` FROM menus
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, arg.ID, arg.TenantID)
	return scanMenu(row)
}

func (q *Queries) ListMenus(ctx context.Context, tenantID uuid.UUID) ([]Menu, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuColumns+` FROM menus
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

type UpdateMenuParams struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Version     int64
	Name        string
	Description pgtype.Text
	UnitPrice   pgtype.Numeric
	UpdatedBy   pgtype.UUID
}

func (q *Queries) UpdateMenu(ctx context.Context, arg UpdateMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menus SET name = $4, description = $5, unit_price = $6,
			updated_by = $7, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+menuColumns,
		arg.ID, arg.TenantID, arg.Version, arg.Name, arg.Description, arg.UnitPrice, arg.UpdatedBy)
	return scanMenu(row)
}

func (q *Queries) SoftDeleteMenu(ctx context.Context, arg SoftDeleteParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE menus SET deleted_at = now(), updated_by = $4, updated_at = now(), version = version + 1
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

const utilityColumns = `id, tenant_id, utility_code, name, description, unit_price,
	created_at, updated_at, created_by, updated_by, version, deleted_at`

func scanUtility(row pgx.Row) (Utility, error) {
	var u Utility
	err := row.Scan(
		&u.ID, &u.TenantID, &u.UtilityCode, &u.Name, &u.Description, &u.UnitPrice,
		&u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy, &u.Version, &u.DeletedAt,
	)
	return u, err
}

type CreateUtilityParams struct {
	TenantID    uuid.UUID
	UtilityCode string
	Name        string
	Description pgtype.Text
	UnitPrice   pgtype.Numeric
	CreatedBy   pgtype.UUID
}

func (q *Queries) CreateUtility(ctx context.Context, arg CreateUtilityParams) (Utility, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO utilities (tenant_id, utility_code, name, description, unit_price, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+utilityColumns,
		arg.TenantID, arg.UtilityCode, arg.Name, arg.Description, arg.UnitPrice, arg.CreatedBy)
	return scanUtility(row)
}

type GetUtilityParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetUtility(ctx context.Context, arg GetUtilityParams) (Utility, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+utilityColumns+` FROM utilities
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, arg.ID, arg.TenantID)
	return scanUtility(row)
}

func (q *Queries) ListUtilities(ctx context.Context, tenantID uuid.UUID) ([]Utility, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+utilityColumns+` FROM utilities
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utilities []Utility
	for rows.Next() {
		u, err := scanUtility(rows)
		if err != nil {
			return nil, err
		}
		utilities = append(utilities, u)
	}
	return utilities, rows.Err()
}

type UpdateUtilityParams struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Version     int64
	Name        string
	Description pgtype.Text
	UnitPrice   pgtype.Numeric
	UpdatedBy   pgtype.UUID
}

func (q *Queries) UpdateUtility(ctx context.Context, arg UpdateUtilityParams) (Utility, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE utilities SET name = $4, description = $5, unit_price = $6,
			updated_by = $7, updated_at = now(), version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING `+utilityColumns,
		arg.ID, arg.TenantID, arg.Version, arg.Name, arg.Description, arg.UnitPrice, arg.UpdatedBy)
	return scanUtility(row)
}

func (q *Queries) SoftDeleteUtility(ctx context.Context, arg SoftDeleteParams) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE utilities SET deleted_at = now(), updated_by = $4, updated_at = now(), version = version + 1
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
