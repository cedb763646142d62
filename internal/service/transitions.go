package service

import "github.com/spec-kit/service-request-engine/internal/domain"

// allowedTransitions is the full successor table for request statuses.
// Reviewed together with the field allow-lists in scope.go: changes to one
// usually mean changes to the other.
//
// The lattice is monotone: once a status is passed it is never reachable
// again, but PENDING may jump straight to COMPLETED, so the table is
// authoritative and no ordering shortcut applies.
var allowedTransitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.RequestStatusPending: {
		domain.RequestStatusInReview,
		domain.RequestStatusScheduled,
		domain.RequestStatusInProgress,
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
	},
	domain.RequestStatusInReview: {
		domain.RequestStatusScheduled,
		domain.RequestStatusInProgress,
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
	},
	domain.RequestStatusScheduled: {
		domain.RequestStatusInProgress,
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
	},
	domain.RequestStatusInProgress: {
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
	},
	domain.RequestStatusCompleted: {},
	domain.RequestStatusCancelled: {},
}

// IsValidTransition reports whether current may move to next. Re-saving the
// same status is always allowed so callers can attach notes without a state
// change.
func IsValidTransition(current, next domain.RequestStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
