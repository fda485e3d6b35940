package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoreStatus is the lifecycle state of a provisioned store instance.
type StoreStatus string

const (
	StatusRequested    StoreStatus = "requested"
	StatusProvisioning StoreStatus = "provisioning"
	StatusReady        StoreStatus = "ready"
	StatusFailed       StoreStatus = "failed"
	StatusDeleting     StoreStatus = "deleting"
	StatusDeleted      StoreStatus = "deleted"
)

// Engine identifies one of the supported e-commerce engines.
type Engine string

const (
	EngineWooCommerce Engine = "woocommerce"
	EngineMedusa      Engine = "medusa"
)

// DefaultEngine is applied when a creation request omits the engine field.
const DefaultEngine = EngineWooCommerce

// ParseEngine validates a client-supplied engine identifier. An empty value
// resolves to DefaultEngine.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "":
		return DefaultEngine, nil
	case EngineWooCommerce:
		return EngineWooCommerce, nil
	case EngineMedusa:
		return EngineMedusa, nil
	default:
		return "", ErrUnsupportedEngine
	}
}

// StoreURLs holds the public endpoints of a store once it is ready.
type StoreURLs struct {
	Storefront string `json:"storefront"`
	Admin      string `json:"admin"`
}

// Store represents one provisioned store instance owned by a tenant.
// OwnerID is always derived server-side from the authenticated identity and
// is immutable after creation. The row is never physically removed; a deleted
// store stays in the registry with status "deleted" for audit purposes.
type Store struct {
	ID                     uuid.UUID   `json:"id"`
	OwnerID                uuid.UUID   `json:"owner_id"`
	Name                   string      `json:"name"`
	Engine                 Engine      `json:"engine"`
	Status                 StoreStatus `json:"status"`
	FailureReason          string      `json:"failure_reason,omitempty"`
	URLs                   *StoreURLs  `json:"urls,omitempty"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
	ProvisioningStartedAt  *time.Time  `json:"provisioning_started_at,omitempty"`
	ProvisioningDurationMs int64       `json:"provisioning_duration_ms,omitempty"`
}
