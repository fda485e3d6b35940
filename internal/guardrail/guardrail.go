// Package guardrail holds the pre-creation checks protecting shared capacity:
// per-tenant quota, per-tenant creation cooldown, and engine validation.
// Checks run as an ordered pipeline; the first failure short-circuits the
// rest. All checks run before any state is mutated, so a rejection never
// needs a rollback.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storepilot/storepilot/internal/domain"
)

// CreationRequest is the input a check validates.
type CreationRequest struct {
	Identity domain.Identity
	Name     string
	Engine   string
}

// Check is one guardrail applied to store creation.
type Check interface {
	Name() string
	Validate(ctx context.Context, req CreationRequest) error
}

// Pipeline applies checks in order and stops at the first failure.
type Pipeline struct {
	checks []Check
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger, checks ...Check) *Pipeline {
	return &Pipeline{
		checks: checks,
		logger: logger.With("component", "guardrail"),
	}
}

// Committer is implemented by checks that keep state keyed to accepted
// creations, such as the cooldown window.
type Committer interface {
	Commit(ctx context.Context, req CreationRequest) error
}

// Validate runs every check against the request. The returned error wraps the
// failing check's sentinel so callers can map it onto the API taxonomy.
// Validation never mutates check state: a rejected request leaves every
// guardrail exactly as it found it.
func (p *Pipeline) Validate(ctx context.Context, req CreationRequest) error {
	for _, c := range p.checks {
		if err := c.Validate(ctx, req); err != nil {
			p.logger.Info("creation request rejected",
				"check", c.Name(),
				"owner_id", req.Identity.UserID,
				"error", err,
			)
			return fmt.Errorf("guardrail %s: %w", c.Name(), err)
		}
	}
	return nil
}

// Commit notifies stateful checks that the creation was accepted. Called
// after the store is persisted; commit failures are logged, never surfaced,
// since the creation itself already succeeded.
func (p *Pipeline) Commit(ctx context.Context, req CreationRequest) {
	for _, c := range p.checks {
		cm, ok := c.(Committer)
		if !ok {
			continue
		}
		if err := cm.Commit(ctx, req); err != nil {
			p.logger.Error("guardrail commit failed",
				"check", c.Name(),
				"owner_id", req.Identity.UserID,
				"error", err,
			)
		}
	}
}

// QuotaCheck rejects creation once the owner's active store count reaches the
// configured maximum. The count is read live from the registry, never cached,
// and failed stores do not count, so a tenant can retry a failed attempt
// without burning quota.
type QuotaCheck struct {
	stores    domain.StoreRepository
	maxStores int
}

func NewQuotaCheck(stores domain.StoreRepository, maxStores int) *QuotaCheck {
	return &QuotaCheck{stores: stores, maxStores: maxStores}
}

func (c *QuotaCheck) Name() string { return "store_limit" }

func (c *QuotaCheck) Validate(ctx context.Context, req CreationRequest) error {
	count, err := c.stores.CountActiveByOwner(ctx, req.Identity.UserID)
	if err != nil {
		return fmt.Errorf("count active stores: %w", err)
	}
	if count >= c.maxStores {
		return fmt.Errorf("%w: %d of %d active stores in use", domain.ErrQuotaExceeded, count, c.maxStores)
	}
	return nil
}

// EngineCheck validates a client-supplied engine identifier. An absent engine
// passes through; the default is applied downstream.
type EngineCheck struct{}

func (EngineCheck) Name() string { return "engine" }

func (EngineCheck) Validate(ctx context.Context, req CreationRequest) error {
	if req.Engine == "" {
		return nil
	}
	if _, err := domain.ParseEngine(req.Engine); err != nil {
		return fmt.Errorf("%w: %q", err, req.Engine)
	}
	return nil
}
