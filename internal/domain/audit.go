package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the privileged action an audit entry records.
type AuditAction string

const (
	AuditStoreCreate     AuditAction = "store.create"
	AuditStoreDelete     AuditAction = "store.delete"
	AuditStoreRetry      AuditAction = "store.retry"
	AuditStoreTransition AuditAction = "store.transition"
	AuditAdminRead       AuditAction = "admin.read"
)

// Audit outcomes. Accept/reject record the control-plane decision on a
// request; applied/failed record the result of an orchestrator transition.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeApplied  = "applied"
	OutcomeFailed   = "failed"
)

// AuditEntry is an immutable record of one privileged action. Entries are
// only ever appended; no mutation or deletion path exists.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	ActorID   uuid.UUID   `json:"actor_id"`
	ActorRole Role        `json:"actor_role"`
	Action    AuditAction `json:"action"`
	TargetID  *uuid.UUID  `json:"target_id,omitempty"`
	Outcome   string      `json:"outcome"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
