package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role defines the permission level of an account.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleAdmin  Role = "admin"

	// RoleSystem is never attached to an account or a credential; it only
	// appears as the actor role on audit entries written by the
	// orchestrator itself.
	RoleSystem Role = "system"
)

// User represents an account that can own stores.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not exposed in API responses
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the authenticated caller derived from the request credential.
// It is the only source of ownership for mutations; client-supplied owner
// fields are discarded.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// IsAdmin reports whether the identity may act across tenant boundaries.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Owns reports whether the identity owns the given store.
func (i Identity) Owns(s *Store) bool {
	return s != nil && s.OwnerID == i.UserID
}
