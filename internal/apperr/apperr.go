// Package apperr defines the typed errors surfaced by the domain layer.
// Handlers translate these into HTTP status codes; services never format
// user-facing strings beyond the structured payload here.
package apperr

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFound reports a row that does not exist or is not visible to the
// caller's tenant. Cross-tenant probes deliberately look identical to
// missing rows so ids cannot be enumerated.
type NotFound struct {
	Entity string
	Field  string
	Value  string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found with %s: %s", e.Entity, e.Field, e.Value)
}

// Duplicate reports a uniqueness violation within the caller's tenant scope.
type Duplicate struct {
	Entity string
	Field  string
	Value  string
}

func (e *Duplicate) Error() string {
	return fmt.Sprintf("%s already exists with %s: %s", e.Entity, e.Field, e.Value)
}

// InvalidOperation reports a state-machine guard failure or an edit that the
// current order status does not permit.
type InvalidOperation struct {
	Message string
}

func (e *InvalidOperation) Error() string { return e.Message }

// InvalidTransition builds the InvalidOperation for an illegal workflow move,
// naming the requested operation and the actual current state.
func InvalidTransition(op, from string) *InvalidOperation {
	return &InvalidOperation{Message: fmt.Sprintf("cannot %s from %s", op, from)}
}

// Conflict reports a stale optimistic version on write. The caller must
// reload and resubmit; the core never retries.
type Conflict struct {
	Entity string
	ID     uuid.UUID
}

func (e *Conflict) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently, reload and retry", e.Entity, e.ID)
}

// Unauthorized reports a cross-tenant access attempt or insufficient role.
type Unauthorized struct {
	Reason string
}

func (e *Unauthorized) Error() string { return e.Reason }

// Validation reports malformed or out-of-range input.
type Validation struct {
	Field   string
	Message string
}

func (e *Validation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
