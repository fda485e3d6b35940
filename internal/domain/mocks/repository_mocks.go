package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/domain"
)

// MockStoreRepository is an in-memory implementation of
// domain.StoreRepository for testing. It mirrors the real registry's
// semantics: duplicate detection among non-deleted stores and transition
// assertion on every status write.
type MockStoreRepository struct {
	mu     sync.Mutex
	stores map[uuid.UUID]*domain.Store

	CreateErr error
	GetErr    error
	ListErr   error
	CountErr  error
	UpdateErr error
}

func NewMockStoreRepository() *MockStoreRepository {
	return &MockStoreRepository{stores: make(map[uuid.UUID]*domain.Store)}
}

func (m *MockStoreRepository) Create(ctx context.Context, store *domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, s := range m.stores {
		if s.OwnerID == store.OwnerID && s.Name == store.Name && s.Status != domain.StatusDeleted {
			return domain.ErrDuplicateStore
		}
	}
	cp := *store
	m.stores[store.ID] = &cp
	return nil
}

func (m *MockStoreRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.stores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockStoreRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, f domain.StoreFilter) ([]*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*domain.Store
	for _, s := range m.stores {
		if s.OwnerID != ownerID {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return truncate(out, f.Limit), nil
}

func (m *MockStoreRepository) ListAll(ctx context.Context, f domain.StoreFilter) ([]*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*domain.Store
	for _, s := range m.stores {
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return truncate(out, f.Limit), nil
}

func (m *MockStoreRepository) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	n := 0
	for _, s := range m.stores {
		if s.OwnerID == ownerID && domain.IsActive(s.Status) {
			n++
		}
	}
	return n, nil
}

func (m *MockStoreRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.StoreStatus, extra domain.StatusUpdate) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	s, ok := m.stores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := domain.AssertTransition(s.Status, to); err != nil {
		return nil, err
	}
	s.Status = to
	s.UpdatedAt = time.Now().UTC()
	if to == domain.StatusFailed {
		s.FailureReason = extra.FailureReason
	} else {
		s.FailureReason = ""
	}
	if extra.URLs != nil {
		urls := *extra.URLs
		s.URLs = &urls
	}
	if extra.ProvisioningStartedAt != nil {
		t := *extra.ProvisioningStartedAt
		s.ProvisioningStartedAt = &t
	}
	if extra.ProvisioningDurationMs != nil {
		s.ProvisioningDurationMs = *extra.ProvisioningDurationMs
	}
	cp := *s
	return &cp, nil
}

func sortNewestFirst(stores []*domain.Store) {
	sort.Slice(stores, func(i, j int) bool {
		return stores[i].CreatedAt.After(stores[j].CreatedAt)
	})
}

func truncate(stores []*domain.Store, limit int) []*domain.Store {
	if limit > 0 && len(stores) > limit {
		return stores[:limit]
	}
	return stores
}

// MockUserRepository is an in-memory domain.UserRepository.
type MockUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User

	CreateErr error
	FindErr   error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateUser
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// MockAuditRepository collects audit entries in memory.
type MockAuditRepository struct {
	mu      sync.Mutex
	Entries []*domain.AuditEntry

	RecordErr error
}

func (m *MockAuditRepository) Record(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	cp := *e
	m.Entries = append(m.Entries, &cp)
	return nil
}

func (m *MockAuditRepository) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEntry
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		if e.TargetID != nil && *e.TargetID == targetID {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ByAction returns recorded entries matching the action, for assertions.
func (m *MockAuditRepository) ByAction(action domain.AuditAction) []*domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range m.Entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// MockProvisioner is a configurable domain.Provisioner.
type MockProvisioner struct {
	mu           sync.Mutex
	CreatedIDs   []uuid.UUID
	DestroyedIDs []uuid.UUID

	CreateErr  error
	DestroyErr error
	PingErr    error
	Result     *domain.ProvisionResult
	CreateHook func(store *domain.Store) // runs while the call is in flight
}

func (m *MockProvisioner) Create(ctx context.Context, store *domain.Store) (*domain.ProvisionResult, error) {
	if m.CreateHook != nil {
		m.CreateHook(store)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.CreatedIDs = append(m.CreatedIDs, store.ID)
	if m.Result != nil {
		return m.Result, nil
	}
	return &domain.ProvisionResult{URLs: domain.StoreURLs{
		Storefront: "https://" + store.Name + ".shops.example.com",
		Admin:      "https://" + store.Name + ".shops.example.com/admin",
	}}, nil
}

func (m *MockProvisioner) Destroy(ctx context.Context, store *domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DestroyErr != nil {
		return m.DestroyErr
	}
	m.DestroyedIDs = append(m.DestroyedIDs, store.ID)
	return nil
}

func (m *MockProvisioner) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}
