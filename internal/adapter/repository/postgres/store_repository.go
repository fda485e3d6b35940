package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/storepilot/storepilot/internal/domain"
)

const uniqueViolation = "23505"

// StoreRepository is the authoritative Postgres-backed store registry.
// Duplicate (owner_id, name) detection is enforced by a partial unique index
// over non-deleted rows, so concurrent identical requests race at the
// storage layer, not in application code.
type StoreRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStoreRepository(db *sql.DB, logger *slog.Logger) *StoreRepository {
	return &StoreRepository{db: db, logger: logger.With("component", "store_repository")}
}

const storeColumns = `id, owner_id, name, engine, status, failure_reason,
	storefront_url, admin_url, created_at, updated_at,
	provisioning_started_at, provisioning_duration_ms`

func (r *StoreRepository) Create(ctx context.Context, store *domain.Store) error {
	query := `
        INSERT INTO stores (id, owner_id, name, engine, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.ExecContext(ctx, query,
		store.ID, store.OwnerID, store.Name, store.Engine, store.Status,
		store.CreatedAt, store.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateStore
		}
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

func (r *StoreRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`
	store, err := scanStore(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	return store, nil
}

func (r *StoreRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, f domain.StoreFilter) ([]*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE owner_id = $1`
	args := []any{ownerID}
	query, args = applyFilter(query, args, f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stores by owner: %w", err)
	}
	defer rows.Close()
	return collectStores(rows)
}

func (r *StoreRepository) ListAll(ctx context.Context, f domain.StoreFilter) ([]*domain.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE true`
	var args []any
	query, args = applyFilter(query, args, f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()
	return collectStores(rows)
}

func (r *StoreRepository) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	query := `
        SELECT COUNT(*) FROM stores
        WHERE owner_id = $1 AND status IN ('requested', 'provisioning', 'ready')
    `
	var count int
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active stores: %w", err)
	}
	return count, nil
}

// UpdateStatus reads the current status under a row lock, asserts the
// transition against the lifecycle table, and persists the change in the
// same transaction. An out-of-order or concurrent write can therefore never
// corrupt the lifecycle.
func (r *StoreRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.StoreStatus, extra domain.StatusUpdate) (*domain.Store, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	var current domain.StoreStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM stores WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock store row: %w", err)
	}

	if err := domain.AssertTransition(current, to); err != nil {
		return nil, err
	}

	failureReason := sql.NullString{}
	if to == domain.StatusFailed && extra.FailureReason != "" {
		failureReason = sql.NullString{String: extra.FailureReason, Valid: true}
	}
	var storefront, admin sql.NullString
	if extra.URLs != nil {
		storefront = sql.NullString{String: extra.URLs.Storefront, Valid: true}
		admin = sql.NullString{String: extra.URLs.Admin, Valid: true}
	}
	var startedAt sql.NullTime
	if extra.ProvisioningStartedAt != nil {
		startedAt = sql.NullTime{Time: *extra.ProvisioningStartedAt, Valid: true}
	}
	var durationMs sql.NullInt64
	if extra.ProvisioningDurationMs != nil {
		durationMs = sql.NullInt64{Int64: *extra.ProvisioningDurationMs, Valid: true}
	}

	query := `
        UPDATE stores SET
            status = $2,
            failure_reason = $3,
            storefront_url = COALESCE($4, storefront_url),
            admin_url = COALESCE($5, admin_url),
            provisioning_started_at = COALESCE($6, provisioning_started_at),
            provisioning_duration_ms = COALESCE($7, provisioning_duration_ms),
            updated_at = $8
        WHERE id = $1
    `
	if _, err := tx.ExecContext(ctx, query, id, to, failureReason,
		storefront, admin, startedAt, durationMs, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update store status: %w", err)
	}

	store, err := scanStore(tx.QueryRowContext(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("reload store: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return store, nil
}

func applyFilter(query string, args []any, f domain.StoreFilter) (string, []any) {
	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (*domain.Store, error) {
	var (
		s             domain.Store
		failureReason sql.NullString
		storefront    sql.NullString
		admin         sql.NullString
		startedAt     sql.NullTime
		durationMs    sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Engine, &s.Status, &failureReason,
		&storefront, &admin, &s.CreatedAt, &s.UpdatedAt, &startedAt, &durationMs,
	)
	if err != nil {
		return nil, err
	}
	s.FailureReason = failureReason.String
	if storefront.Valid || admin.Valid {
		s.URLs = &domain.StoreURLs{Storefront: storefront.String, Admin: admin.String}
	}
	if startedAt.Valid {
		t := startedAt.Time
		s.ProvisioningStartedAt = &t
	}
	s.ProvisioningDurationMs = durationMs.Int64
	return &s, nil
}

func collectStores(rows *sql.Rows) ([]*domain.Store, error) {
	var out []*domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
