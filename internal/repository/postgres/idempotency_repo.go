package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kredia/kredia-backend/internal/domain"
)

// IdempotencyRepository implements domain.IdempotencyRepository using
// PostgreSQL. Expiry is enforced on read; DeleteExpired reclaims rows.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository creates a new IdempotencyRepository
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Get retrieves a live record by key; expired records count as absent
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	err := r.pool.QueryRow(ctx, `
		SELECT key, endpoint, method, status_code, response_body, account_id, expires_at, created_at
		FROM idempotency_records
		WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(
		&record.Key, &record.Endpoint, &record.Method, &record.StatusCode,
		&record.ResponseBody, &record.AccountID, &record.ExpiresAt, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Put stores a record, replacing an expired one under the same key. A live
// record with the same key returns ErrAlreadyExists.
func (r *IdempotencyRepository) Put(ctx context.Context, record *domain.IdempotencyRecord) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_records (key, endpoint, method, status_code, response_body, account_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO UPDATE SET
			endpoint = EXCLUDED.endpoint,
			method = EXCLUDED.method,
			status_code = EXCLUDED.status_code,
			response_body = EXCLUDED.response_body,
			account_id = EXCLUDED.account_id,
			expires_at = EXCLUDED.expires_at,
			created_at = now()
		WHERE idempotency_records.expires_at <= now()`,
		record.Key, record.Endpoint, record.Method, record.StatusCode,
		record.ResponseBody, record.AccountID, record.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// DeleteExpired removes records whose expiry is in the past
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
