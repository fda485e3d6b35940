package domain

import "fmt"

// transitions is the authoritative lifecycle table. Any (from, to) pair not
// listed here is illegal, and every status writer must go through
// AssertTransition before persisting.
var transitions = map[StoreStatus][]StoreStatus{
	StatusRequested:    {StatusProvisioning},
	StatusProvisioning: {StatusReady, StatusFailed},
	StatusReady:        {StatusDeleting},
	StatusFailed:       {StatusRequested, StatusDeleting},
	StatusDeleting:     {StatusDeleted, StatusFailed},
	StatusDeleted:      {},
}

// AssertTransition reports whether from → to is an allowed lifecycle
// transition. A failure here on a validated path indicates a bug, not bad
// tenant input.
func AssertTransition(from, to StoreStatus) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CanDelete reports whether a store in the given state may begin deletion.
// When it may not, reason explains why in human-readable terms.
func CanDelete(s StoreStatus) (ok bool, reason string) {
	switch s {
	case StatusReady, StatusFailed:
		return true, ""
	case StatusRequested, StatusProvisioning:
		return false, "cannot delete while provisioning is in progress"
	case StatusDeleting:
		return false, "deletion already in progress"
	case StatusDeleted:
		return false, "store is already deleted"
	default:
		return false, fmt.Sprintf("cannot delete store in state %q", s)
	}
}

// CanRetry reports whether provisioning may be reattempted. Only failed
// stores are retryable.
func CanRetry(s StoreStatus) bool {
	return s == StatusFailed
}

// IsTerminal reports whether the state admits no further transitions.
func IsTerminal(s StoreStatus) bool {
	return s == StatusDeleted
}

// IsActive reports whether the store occupies real capacity and therefore
// counts against its owner's quota. Failed stores are deliberately excluded
// so a tenant can retry without being blocked by their own failed attempts.
func IsActive(s StoreStatus) bool {
	switch s {
	case StatusRequested, StatusProvisioning, StatusReady:
		return true
	default:
		return false
	}
}
