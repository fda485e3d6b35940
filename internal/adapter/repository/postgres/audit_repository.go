package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/domain"
)

// AuditRepository is the append-only Postgres audit sink. It intentionally
// exposes no update or delete operations.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, e *domain.AuditEntry) error {
	query := `
        INSERT INTO audit_entries (id, actor_id, actor_role, action, target_id, outcome, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	var target uuid.NullUUID
	if e.TargetID != nil {
		target = uuid.NullUUID{UUID: *e.TargetID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ActorID, e.ActorRole, e.Action, target, e.Outcome, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
        SELECT id, actor_id, actor_role, action, target_id, outcome, detail, created_at
        FROM audit_entries
        WHERE target_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.db.QueryContext(ctx, query, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEntry
	for rows.Next() {
		var (
			e      domain.AuditEntry
			target uuid.NullUUID
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &target, &e.Outcome, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if target.Valid {
			id := target.UUID
			e.TargetID = &id
		}
		e.Detail = detail.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
