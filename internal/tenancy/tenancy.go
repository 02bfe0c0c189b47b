// Package tenancy enforces the tenant-isolation invariant. Every query the
// storage layer runs already carries an explicit tenant predicate; this guard
// is the second line of defense for rows loaded through an aggregate
// boundary (e.g. a payment reached via its order).
package tenancy

import (
	"github.com/google/uuid"
	"github.com/smtech/caterer-api/internal/apperr"
)

// Check rejects any row whose stored tenant differs from the caller's active
// tenant, even when the row id itself is valid. This keeps guessed ids from
// leaking data across tenants.
func Check(ctxTenantID, rowTenantID uuid.UUID) error {
	if ctxTenantID != rowTenantID {
		return &apperr.Unauthorized{Reason: "record belongs to a different tenant"}
	}
	return nil
}
