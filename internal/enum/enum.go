package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusDraft      = "DRAFT"
	OrderStatusSubmitted  = "SUBMITTED"
	OrderStatusApproved   = "APPROVED"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

const (
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusPending   = "PENDING"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusRefunded  = "REFUNDED"
)

const (
	TenantStatusActive    = "ACTIVE"
	TenantStatusSuspended = "SUSPENDED"
	TenantStatusExpired   = "EXPIRED"
)

// ── Group B: Roles (CHECK constrained in DB) ──

// ADMIN is the only role not bound to a tenant; admins manage tenants
// themselves and may cross tenant boundaries.
const (
	UserRoleAdmin   = "ADMIN"
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleStaff   = "STAFF"
)

// ── Group C: Payment methods (CHECK constrained in DB) ──

const (
	PaymentMethodCash         = "CASH"
	PaymentMethodCard         = "CARD"
	PaymentMethodUPI          = "UPI"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodCheque       = "CHEQUE"
	PaymentMethodOther        = "OTHER"
)
