package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Audit is the shared identity-and-audit shape embedded in every persisted
// record: creation/modification stamps, the optimistic version counter and
// the soft-delete tombstone. A row is deleted iff DeletedAt is set.
type Audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy pgtype.UUID
	UpdatedBy pgtype.UUID
	Version   int64
	DeletedAt pgtype.Timestamptz
}

// IsDeleted reports whether the soft-delete tombstone is set.
func (a Audit) IsDeleted() bool { return a.DeletedAt.Valid }

// RowVersion returns the optimistic version counter.
func (a Audit) RowVersion() int64 { return a.Version }

// Capability interfaces generic guard/storage code depends on, instead of an
// entity class hierarchy.
type (
	Versioned     interface{ RowVersion() int64 }
	SoftDeletable interface{ IsDeleted() bool }
	TenantScoped  interface{ Tenant() uuid.UUID }
)

// Tenant is a catering business; the unit of data partitioning. Its code and
// email are globally unique (everything else is unique per tenant only).
type Tenant struct {
	ID                uuid.UUID
	TenantCode        string
	BusinessName      string
	ContactPerson     pgtype.Text
	Email             pgtype.Text
	Phone             pgtype.Text
	Address           pgtype.Text
	Status            string
	SubscriptionStart pgtype.Date
	SubscriptionEnd   pgtype.Date
	Audit
}

// User is an operator account. TenantID is null only for system admins.
type User struct {
	ID           uuid.UUID
	TenantID     pgtype.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	Audit
}

type Customer struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	CustomerCode string
	Name         string
	Phone        pgtype.Text
	Email        pgtype.Text
	Address      pgtype.Text
	Audit
}

func (c Customer) Tenant() uuid.UUID { return c.TenantID }

type EventType struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	EventCode string
	Name      string
	Audit
}

func (e EventType) Tenant() uuid.UUID { return e.TenantID }

// Menu is a dish/package the tenant offers, priced per unit (usually per guest).
type Menu struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	MenuCode    string
	Name        string
	Description pgtype.Text
	UnitPrice   pgtype.Numeric
	Audit
}

func (m Menu) Tenant() uuid.UUID { return m.TenantID }

// Utility is a rentable service or item (tables, tents, staff, transport).
type Utility struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	UtilityCode string
	Name        string
	Description pgtype.Text
	UnitPrice   pgtype.Numeric
	Audit
}

func (u Utility) Tenant() uuid.UUID { return u.TenantID }

// Order is the aggregate root of a catering booking. TotalAmount is the
// grand total (subtotal - discount + tax); BalanceAmount must always equal
// TotalAmount - AdvanceAmount after a committed write.
type Order struct {
	ID          uuid.UUID
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

	Status string
	Notes  pgtype.Text

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

	Audit
}

func (o Order) Tenant() uuid.UUID { return o.TenantID }

// OrderMenuItem is an owned line item: it lives and dies with its order and
// holds only the owning id, never a back-reference.
type OrderMenuItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	MenuID    uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
	CreatedAt time.Time
}

type OrderUtility struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	UtilityID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
	CreatedAt time.Time
}

// Payment is an append-mostly ledger entry against an order. Amounts are
// never edited after creation; corrections are new payments or a status
// transition to REFUNDED.
type Payment struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	OrderID       uuid.UUID
	PaymentNumber string
	PaymentDate   pgtype.Date
	Amount        pgtype.Numeric
	Method        string
	TransactionRef pgtype.Text
	UpiID         pgtype.Text
	Notes         pgtype.Text
	Status        string
	Audit
}

func (p Payment) Tenant() uuid.UUID { return p.TenantID }
