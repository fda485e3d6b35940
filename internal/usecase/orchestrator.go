package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/adapter/metrics"
	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/health"
)

type jobKind int

const (
	jobProvision jobKind = iota
	jobDeprovision
)

func (k jobKind) String() string {
	if k == jobDeprovision {
		return "deprovision"
	}
	return "provision"
}

type job struct {
	kind    jobKind
	storeID uuid.UUID
}

// Orchestrator drives stores through their lifecycle by invoking the
// external provisioner and persisting the resulting transitions. Jobs run on
// a bounded worker pool; transitions on a single store are totally ordered by
// an exclusive per-store in-flight slot, while different stores proceed
// independently.
type Orchestrator struct {
	stores  domain.StoreRepository
	prov    domain.Provisioner
	audit   domain.AuditRepository
	breaker *health.Breaker // provisioner circuit; nil disables fail-fast
	metrics *metrics.ControlPlaneMetrics
	logger  *slog.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	workers int
}

func NewOrchestrator(
	stores domain.StoreRepository,
	prov domain.Provisioner,
	audit domain.AuditRepository,
	breaker *health.Breaker,
	m *metrics.ControlPlaneMetrics,
	logger *slog.Logger,
	workers, queueSize int,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	return &Orchestrator{
		stores:   stores,
		prov:     prov,
		audit:    audit,
		breaker:  breaker,
		metrics:  m,
		logger:   logger.With("component", "orchestrator"),
		jobs:     make(chan job, queueSize),
		inflight: make(map[uuid.UUID]struct{}),
		workers:  workers,
	}
}

// Run starts the worker pool and blocks until the context is cancelled and
// all in-flight jobs have finished.
func (o *Orchestrator) Run(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	<-ctx.Done()
	o.wg.Wait()
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-o.jobs:
			if o.metrics != nil {
				o.metrics.OrchestratorQueue.Dec()
			}
			o.handle(ctx, j)
		}
	}
}

// SignalProvision hands a requested or failed store to the workers.
// The store's exclusive slot is taken synchronously: a second operation
// against a store already mid-transition fails with ErrConflictingOperation
// instead of being queued behind the first.
func (o *Orchestrator) SignalProvision(id uuid.UUID) error {
	return o.enqueue(job{kind: jobProvision, storeID: id})
}

// SignalDeprovision hands a deletable store to the workers.
func (o *Orchestrator) SignalDeprovision(id uuid.UUID) error {
	return o.enqueue(job{kind: jobDeprovision, storeID: id})
}

func (o *Orchestrator) enqueue(j job) error {
	if !o.acquire(j.storeID) {
		return fmt.Errorf("%w: store %s", domain.ErrConflictingOperation, j.storeID)
	}
	select {
	case o.jobs <- j:
		if o.metrics != nil {
			o.metrics.OrchestratorQueue.Inc()
		}
		return nil
	default:
		o.release(j.storeID)
		return fmt.Errorf("%w: orchestrator queue full", domain.ErrDependencyUnavailable)
	}
}

func (o *Orchestrator) acquire(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}

func (o *Orchestrator) handle(ctx context.Context, j job) {
	defer o.release(j.storeID)

	log := o.logger.With("store_id", j.storeID, "job", j.kind.String())
	store, err := o.stores.Get(ctx, j.storeID)
	if err != nil {
		log.Error("failed to load store for orchestration", "error", err)
		return
	}

	switch j.kind {
	case jobProvision:
		o.provision(ctx, log, store)
	case jobDeprovision:
		o.deprovision(ctx, log, store)
	}
}

// provision drives requested → provisioning → {ready | failed}. A failed
// store is first re-entered into requested (the retry path), which clears
// its failure reason.
func (o *Orchestrator) provision(ctx context.Context, log *slog.Logger, store *domain.Store) {
	// Duplicate completion signal for an already-ready store is a no-op.
	if store.Status == domain.StatusReady {
		log.Debug("store already ready, ignoring duplicate signal")
		return
	}

	if store.Status == domain.StatusFailed {
		updated, err := o.transition(ctx, log, store, domain.StatusRequested, domain.StatusUpdate{})
		if err != nil {
			return
		}
		store = updated
	}

	if store.Status != domain.StatusRequested {
		log.Warn("store not in a provisionable state", "status", store.Status)
		return
	}

	started := time.Now().UTC()
	store, err := o.transition(ctx, log, store, domain.StatusProvisioning, domain.StatusUpdate{
		ProvisioningStartedAt: &started,
	})
	if err != nil {
		return
	}

	if o.breaker != nil {
		if err := o.breaker.Allow(); err != nil {
			o.fail(ctx, log, store, fmt.Sprintf("provisioner unavailable: %s", err))
			return
		}
	}

	result, err := o.prov.Create(ctx, store)
	if err != nil {
		if o.breaker != nil {
			o.breaker.Failure(err)
		}
		o.fail(ctx, log, store, fmt.Sprintf("provisioning failed: %s", err))
		return
	}
	if o.breaker != nil {
		o.breaker.Success()
	}

	duration := time.Since(started)
	durationMs := duration.Milliseconds()
	urls := result.URLs
	if _, err := o.transition(ctx, log, store, domain.StatusReady, domain.StatusUpdate{
		URLs:                   &urls,
		ProvisioningDurationMs: &durationMs,
	}); err != nil {
		return
	}
	if o.metrics != nil {
		o.metrics.ProvisionDuration.Observe(duration.Seconds())
	}
	log.Info("store provisioned", "duration_ms", durationMs, "storefront", urls.Storefront)
}

// deprovision drives {ready | failed} → deleting → {deleted | failed}.
// A destroy failure lands the store back in failed with a recorded reason
// rather than leaving it stuck in deleting.
func (o *Orchestrator) deprovision(ctx context.Context, log *slog.Logger, store *domain.Store) {
	if store.Status == domain.StatusDeleted {
		log.Debug("store already deleted, ignoring duplicate signal")
		return
	}

	if ok, reason := domain.CanDelete(store.Status); !ok {
		log.Warn("store no longer deletable", "status", store.Status, "reason", reason)
		return
	}

	store, err := o.transition(ctx, log, store, domain.StatusDeleting, domain.StatusUpdate{})
	if err != nil {
		return
	}

	if o.breaker != nil {
		if err := o.breaker.Allow(); err != nil {
			o.fail(ctx, log, store, fmt.Sprintf("provisioner unavailable: %s", err))
			return
		}
	}

	if err := o.prov.Destroy(ctx, store); err != nil {
		if o.breaker != nil {
			o.breaker.Failure(err)
		}
		o.fail(ctx, log, store, fmt.Sprintf("deprovisioning failed: %s", err))
		return
	}
	if o.breaker != nil {
		o.breaker.Success()
	}

	if _, err := o.transition(ctx, log, store, domain.StatusDeleted, domain.StatusUpdate{}); err != nil {
		return
	}
	log.Info("store deleted")
}

// fail captures an operational failure into the store's own failed state so
// it stays queryable and retryable instead of being lost.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, store *domain.Store, reason string) {
	if _, err := o.transition(ctx, log, store, domain.StatusFailed, domain.StatusUpdate{
		FailureReason: reason,
	}); err != nil {
		return
	}
	log.Warn("store marked failed", "reason", reason)
}

// transition applies one lifecycle step through the registry (which asserts
// it against the transition table) and audits the outcome. An invalid
// transition here indicates a bug and is logged at error level.
func (o *Orchestrator) transition(ctx context.Context, log *slog.Logger, store *domain.Store, to domain.StoreStatus, extra domain.StatusUpdate) (*domain.Store, error) {
	from := store.Status
	updated, err := o.stores.UpdateStatus(ctx, store.ID, to, extra)
	if err != nil {
		log.Error("status transition rejected", "from", from, "to", to, "error", err)
		o.auditTransition(ctx, store.ID, from, to, domain.OutcomeFailed, err.Error())
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
	o.auditTransition(ctx, store.ID, from, to, domain.OutcomeApplied, extra.FailureReason)
	return updated, nil
}

func (o *Orchestrator) auditTransition(ctx context.Context, storeID uuid.UUID, from, to domain.StoreStatus, outcome, detail string) {
	msg := fmt.Sprintf("%s -> %s", from, to)
	if detail != "" {
		msg += ": " + detail
	}
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   uuid.Nil, // system actor
		ActorRole: domain.RoleSystem,
		Action:    domain.AuditStoreTransition,
		TargetID:  &storeID,
		Outcome:   outcome,
		Detail:    msg,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.audit.Record(ctx, entry); err != nil {
		o.logger.Error("failed to record transition audit entry", "store_id", storeID, "error", err)
	}
}
