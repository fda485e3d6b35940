package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/adapter/metrics"
	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/guardrail"
)

// Store names become subdomains, so they follow DNS label rules.
var storeNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// Signaler hands a store to the orchestrator for asynchronous processing.
// Signaling acquires the store's exclusive in-flight slot synchronously, so
// a conflicting second operation is rejected before the caller returns.
type Signaler interface {
	SignalProvision(id uuid.UUID) error
	SignalDeprovision(id uuid.UUID) error
}

// StoreService composes authorization, guardrails, the registry, the audit
// log, and the orchestrator signal into the store lifecycle operations.
type StoreService struct {
	stores  domain.StoreRepository
	audit   domain.AuditRepository
	guard   *guardrail.Pipeline
	orch    Signaler
	metrics *metrics.ControlPlaneMetrics
	logger  *slog.Logger
}

func NewStoreService(
	stores domain.StoreRepository,
	audit domain.AuditRepository,
	guard *guardrail.Pipeline,
	orch Signaler,
	m *metrics.ControlPlaneMetrics,
	logger *slog.Logger,
) *StoreService {
	return &StoreService{
		stores:  stores,
		audit:   audit,
		guard:   guard,
		orch:    orch,
		metrics: m,
		logger:  logger.With("component", "store_service"),
	}
}

// Create accepts a store creation request. The owner is always the
// authenticated identity; any client-supplied owner field must be dropped
// before this point. On acceptance the store is persisted in the requested
// state and handed to the orchestrator.
func (s *StoreService) Create(ctx context.Context, ident domain.Identity, name, engine string) (*domain.Store, error) {
	if !storeNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: store name must be a lowercase DNS label (3-63 characters)", domain.ErrValidation)
	}

	req := guardrail.CreationRequest{Identity: ident, Name: name, Engine: engine}
	if err := s.guard.Validate(ctx, req); err != nil {
		s.recordRejection(ctx, ident, domain.AuditStoreCreate, nil, err)
		return nil, err
	}

	// Guardrail already validated the identifier; this applies the default.
	eng, err := domain.ParseEngine(engine)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	store := &domain.Store{
		ID:        uuid.New(),
		OwnerID:   ident.UserID,
		Name:      name,
		Engine:    eng,
		Status:    domain.StatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.stores.Create(ctx, store); err != nil {
		s.recordRejection(ctx, ident, domain.AuditStoreCreate, nil, err)
		return nil, err
	}

	// The creation is accepted: arm the cooldown window now, never on a
	// rejected request.
	s.guard.Commit(ctx, req)

	s.record(ctx, ident, domain.AuditStoreCreate, &store.ID, domain.OutcomeAccepted, string(store.Engine))
	if s.metrics != nil {
		s.metrics.StoresCreated.Inc()
	}

	if err := s.orch.SignalProvision(store.ID); err != nil {
		s.logger.Error("failed to signal provisioning", "store_id", store.ID, "error", err)
		s.captureSignalFailure(ctx, ident, store, err)
		return nil, err
	}

	s.logger.Info("store creation accepted", "store_id", store.ID, "owner_id", ident.UserID, "engine", store.Engine)
	return store, nil
}

// List returns the caller's stores; admins see every tenant's stores.
func (s *StoreService) List(ctx context.Context, ident domain.Identity, f domain.StoreFilter) ([]*domain.Store, error) {
	if ident.IsAdmin() {
		return s.stores.ListAll(ctx, f)
	}
	return s.stores.ListByOwner(ctx, ident.UserID, f)
}

// Get returns one store's detail. Non-owning tenants get ErrForbidden, not
// ErrNotFound: existence is not hidden, only the data.
func (s *StoreService) Get(ctx context.Context, ident domain.Identity, id uuid.UUID) (*domain.Store, error) {
	store, err := s.stores.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, ident, store); err != nil {
		return nil, err
	}
	return store, nil
}

// Logs returns the store's provisioning history: the audit trail scoped to
// that store, newest first. Authorization matches Get.
func (s *StoreService) Logs(ctx context.Context, ident domain.Identity, id uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	store, err := s.stores.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, ident, store); err != nil {
		return nil, err
	}
	return s.audit.ListByTarget(ctx, id, limit)
}

// Delete begins the delete transition for a store the caller may delete.
// The response is accepted-async; the orchestrator drives
// deleting → {deleted | failed}.
func (s *StoreService) Delete(ctx context.Context, ident domain.Identity, id uuid.UUID) error {
	store, err := s.stores.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ident.IsAdmin() && !ident.Owns(store) {
		s.recordRejection(ctx, ident, domain.AuditStoreDelete, &id, domain.ErrForbidden)
		return domain.ErrForbidden
	}

	if ok, reason := domain.CanDelete(store.Status); !ok {
		err := fmt.Errorf("%w: %s", domain.ErrConflictingOperation, reason)
		s.recordRejection(ctx, ident, domain.AuditStoreDelete, &id, err)
		return err
	}

	if err := s.orch.SignalDeprovision(id); err != nil {
		s.recordRejection(ctx, ident, domain.AuditStoreDelete, &id, err)
		return err
	}

	s.record(ctx, ident, domain.AuditStoreDelete, &id, domain.OutcomeAccepted, "")
	s.logger.Info("store deletion accepted", "store_id", id, "actor_id", ident.UserID)
	return nil
}

// Retry reattempts provisioning for a failed store.
func (s *StoreService) Retry(ctx context.Context, ident domain.Identity, id uuid.UUID) error {
	store, err := s.stores.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ident.IsAdmin() && !ident.Owns(store) {
		s.recordRejection(ctx, ident, domain.AuditStoreRetry, &id, domain.ErrForbidden)
		return domain.ErrForbidden
	}

	if !domain.CanRetry(store.Status) {
		err := fmt.Errorf("%w: only failed stores can be retried (status %s)", domain.ErrConflictingOperation, store.Status)
		s.recordRejection(ctx, ident, domain.AuditStoreRetry, &id, err)
		return err
	}

	if err := s.orch.SignalProvision(id); err != nil {
		s.recordRejection(ctx, ident, domain.AuditStoreRetry, &id, err)
		return err
	}

	s.record(ctx, ident, domain.AuditStoreRetry, &id, domain.OutcomeAccepted, "")
	s.logger.Info("store retry accepted", "store_id", id, "actor_id", ident.UserID)
	return nil
}

// captureSignalFailure parks a store whose orchestrator hand-off failed in
// the failed state, walking it there through the lifecycle table. Left in
// requested it would be neither deletable nor retryable and would hold the
// owner's quota forever; failed keeps both recovery paths open.
func (s *StoreService) captureSignalFailure(ctx context.Context, ident domain.Identity, store *domain.Store, cause error) {
	reason := fmt.Sprintf("orchestrator signal failed: %s", cause)
	if _, err := s.stores.UpdateStatus(ctx, store.ID, domain.StatusProvisioning, domain.StatusUpdate{}); err != nil {
		s.logger.Error("failed to park unsignaled store", "store_id", store.ID, "error", err)
		return
	}
	if _, err := s.stores.UpdateStatus(ctx, store.ID, domain.StatusFailed, domain.StatusUpdate{FailureReason: reason}); err != nil {
		s.logger.Error("failed to park unsignaled store", "store_id", store.ID, "error", err)
		return
	}
	s.record(ctx, ident, domain.AuditStoreCreate, &store.ID, domain.OutcomeFailed, reason)
}

// authorize enforces ownership-scoped visibility on read paths and audits
// cross-tenant admin reads.
func (s *StoreService) authorize(ctx context.Context, ident domain.Identity, store *domain.Store) error {
	if ident.Owns(store) {
		return nil
	}
	if !ident.IsAdmin() {
		return domain.ErrForbidden
	}
	s.record(ctx, ident, domain.AuditAdminRead, &store.ID, domain.OutcomeAccepted, "cross-tenant read")
	return nil
}

func (s *StoreService) record(ctx context.Context, ident domain.Identity, action domain.AuditAction, target *uuid.UUID, outcome, detail string) {
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   ident.UserID,
		ActorRole: ident.Role,
		Action:    action,
		TargetID:  target,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record audit entry", "action", action, "error", err)
	}
}

func (s *StoreService) recordRejection(ctx context.Context, ident domain.Identity, action domain.AuditAction, target *uuid.UUID, cause error) {
	s.record(ctx, ident, action, target, domain.OutcomeRejected, cause.Error())
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(cause, domain.ErrQuotaExceeded):
		s.metrics.GuardrailRejections.WithLabelValues("quota").Inc()
	case errors.Is(cause, domain.ErrRateLimited):
		s.metrics.GuardrailRejections.WithLabelValues("cooldown").Inc()
	case errors.Is(cause, domain.ErrUnsupportedEngine):
		s.metrics.GuardrailRejections.WithLabelValues("engine").Inc()
	case errors.Is(cause, domain.ErrDuplicateStore):
		s.metrics.GuardrailRejections.WithLabelValues("duplicate").Inc()
	}
}
