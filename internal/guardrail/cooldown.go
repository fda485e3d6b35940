package guardrail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/storepilot/storepilot/internal/domain"
)

// CooldownStore tracks the creation cooldown per owner. InCooldown reports
// whether the owner's window is still running; Mark starts a new window and
// is only called once a creation has been accepted, so rejected requests
// never arm the cooldown. State is advisory: it may reset across restarts
// and is not required to be shared between replicas unless a distributed
// implementation is plugged in.
type CooldownStore interface {
	InCooldown(ctx context.Context, ownerID uuid.UUID) (bool, error)
	Mark(ctx context.Context, ownerID uuid.UUID) error
}

// MemoryCooldown is the in-process CooldownStore: one single-burst rate
// limiter per owner, refilling once per cooldown window.
type MemoryCooldown struct {
	mu      sync.Mutex
	limiter map[uuid.UUID]*rate.Limiter
	window  time.Duration
	now     func() time.Time
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		limiter: make(map[uuid.UUID]*rate.Limiter),
		window:  window,
		now:     time.Now,
	}
}

func (m *MemoryCooldown) InCooldown(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiter[ownerID]
	if !ok {
		return false, nil
	}
	return l.TokensAt(m.now()) < 1, nil
}

func (m *MemoryCooldown) Mark(ctx context.Context, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiter[ownerID]
	if !ok {
		l = rate.NewLimiter(rate.Every(m.window), 1)
		m.limiter[ownerID] = l
	}
	l.AllowN(m.now(), 1)
	return nil
}

// CooldownCheck enforces a minimum interval between consecutive accepted
// creation requests from the same owner. Validate only inspects the window;
// the window is armed through Commit once the creation is accepted. Admins
// are exempt entirely.
type CooldownCheck struct {
	store  CooldownStore
	window time.Duration
}

func NewCooldownCheck(store CooldownStore, window time.Duration) *CooldownCheck {
	return &CooldownCheck{store: store, window: window}
}

func (c *CooldownCheck) Name() string { return "creation_cooldown" }

func (c *CooldownCheck) Validate(ctx context.Context, req CreationRequest) error {
	if req.Identity.IsAdmin() {
		return nil
	}
	active, err := c.store.InCooldown(ctx, req.Identity.UserID)
	if err != nil {
		return fmt.Errorf("cooldown store: %w", err)
	}
	if active {
		return fmt.Errorf("%w: wait %s between store creations", domain.ErrRateLimited, c.window)
	}
	return nil
}

// Commit starts the owner's cooldown window for an accepted creation.
func (c *CooldownCheck) Commit(ctx context.Context, req CreationRequest) error {
	if req.Identity.IsAdmin() {
		return nil
	}
	return c.store.Mark(ctx, req.Identity.UserID)
}
