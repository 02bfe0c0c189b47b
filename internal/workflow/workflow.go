// Package workflow is the order lifecycle state machine.
//
// Flow: DRAFT -> SUBMITTED -> APPROVED -> IN_PROGRESS -> COMPLETED
//   - CANCELLED is reachable from SUBMITTED, APPROVED, IN_PROGRESS
//   - rejection returns SUBMITTED or APPROVED orders to DRAFT
//
// DRAFT is the initial state; COMPLETED and CANCELLED are terminal.
// The service layer owns the side effects of a transition (recalculation,
// audit stamping, version bump); this package only answers legality.
package workflow

import "github.com/smtech/caterer-api/internal/enum"

// transitions maps each status to the statuses it may move to.
var transitions = map[string][]string{
	enum.OrderStatusDraft:      {enum.OrderStatusSubmitted},
	enum.OrderStatusSubmitted:  {enum.OrderStatusApproved, enum.OrderStatusDraft, enum.OrderStatusCancelled},
	enum.OrderStatusApproved:   {enum.OrderStatusInProgress, enum.OrderStatusDraft, enum.OrderStatusCancelled},
	enum.OrderStatusInProgress: {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
	enum.OrderStatusCompleted:  {},
	enum.OrderStatusCancelled:  {},
}

// Valid reports whether s is a known order status.
func Valid(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from the given status.
func NextStatuses(from string) []string {
	next := transitions[from]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// Editable reports whether structural edits (line items, customer, event
// details, pricing) are permitted. Only DRAFT orders are editable.
func Editable(status string) bool {
	return status == enum.OrderStatusDraft
}

// Cancellable reports whether the order can be cancelled from this status.
func Cancellable(status string) bool {
	return CanTransition(status, enum.OrderStatusCancelled)
}

// Rejectable reports whether the order can be sent back to DRAFT.
func Rejectable(status string) bool {
	return status == enum.OrderStatusSubmitted || status == enum.OrderStatusApproved
}

// Terminal reports whether no further transitions exist from this status.
func Terminal(status string) bool {
	return Valid(status) && len(transitions[status]) == 0
}
