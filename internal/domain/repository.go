package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoreFilter narrows list queries. A nil Status matches every status;
// Limit <= 0 means no limit.
type StoreFilter struct {
	Status *StoreStatus
	Limit  int
}

// StatusUpdate carries the optional fields written alongside a status
// transition. Nil fields are left untouched, except FailureReason which is
// cleared whenever the target state is not "failed".
type StatusUpdate struct {
	FailureReason          string
	URLs                   *StoreURLs
	ProvisioningStartedAt  *time.Time
	ProvisioningDurationMs *int64
}

// StoreRepository is the authoritative registry of store entities.
// Implementations must enforce (owner_id, name) uniqueness among non-deleted
// stores atomically at the storage layer, and must run AssertTransition
// before persisting any status change so that concurrent writers cannot
// corrupt the lifecycle.
type StoreRepository interface {
	// Create persists a new store in the requested state. Returns
	// ErrDuplicateStore when the owner already has a non-deleted store with
	// the same name.
	Create(ctx context.Context, store *Store) error

	// Get returns the store by id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Store, error)

	// ListByOwner returns the owner's stores, newest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, f StoreFilter) ([]*Store, error)

	// ListAll returns every tenant's stores. Callers are responsible for
	// restricting this to admin identities.
	ListAll(ctx context.Context, f StoreFilter) ([]*Store, error)

	// CountActiveByOwner counts the owner's stores in an active state, the
	// quantity guardrail quota accounting is based on.
	CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)

	// UpdateStatus transitions the store to the given state, asserting the
	// transition against the lifecycle table first, and returns the updated
	// entity. Returns ErrNotFound or a wrapped ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, to StoreStatus, extra StatusUpdate) (*Store, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateUser when the email is
	// already registered.
	Create(ctx context.Context, u *User) error

	// FindByEmail returns the user, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID returns the user, or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Count returns the total number of registered accounts. The first
	// registered account becomes the admin.
	Count(ctx context.Context) (int, error)
}

// AuditRepository is the append-only audit sink.
type AuditRepository interface {
	// Record appends one entry. Implementations must never expose mutation
	// or deletion of recorded entries.
	Record(ctx context.Context, e *AuditEntry) error

	// ListByTarget returns entries for one store, newest first.
	ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*AuditEntry, error)
}

// ProvisionResult is what a successful provisioner create yields.
type ProvisionResult struct {
	URLs StoreURLs
}

// Provisioner abstracts the external platform that stands up and tears down
// store workloads. Calls may be slow and must be made with a context; they
// are never invoked on a request-serving goroutine.
type Provisioner interface {
	// Create stands up the workload for the store and returns its URLs.
	Create(ctx context.Context, store *Store) (*ProvisionResult, error)

	// Destroy tears down the workload. Destroying a workload that no longer
	// exists is not an error.
	Destroy(ctx context.Context, store *Store) error

	// Ping probes the platform's availability. Used by the health monitor.
	Ping(ctx context.Context) error
}
