package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kredia/kredia-backend/internal/domain"
)

// AuditRepository implements domain.AuditRepository using PostgreSQL. The
// table is append-only; there are no update or delete paths.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append appends one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_entries (entity_type, entity_id, action, actor, previous, next)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.EntityType, entry.EntityID, entry.Action, entry.Actor,
		[]byte(entry.Previous), []byte(entry.Next),
	)
	return err
}

// ListByEntity retrieves an entity's audit trail in order
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_type, entity_id, action, actor, previous, next, created_at
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			entry    domain.AuditEntry
			previous []byte
			next     []byte
		)
		err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action,
			&entry.Actor, &previous, &next, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.Previous = previous
		entry.Next = next
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
