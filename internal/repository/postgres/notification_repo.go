package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kredia/kredia-backend/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using
// PostgreSQL.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, account_id, type, title, body, data, status, sent_at, read_at, created_at`

// Create creates a new notification
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	var data []byte
	if len(n.Data) > 0 {
		data = n.Data
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (account_id, type, title, body, data, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+notificationColumns,
		n.AccountID, n.Type, n.Title, n.Body, data, string(n.Status), n.SentAt,
	)
	return scanNotification(row)
}

// GetByID retrieves a notification by its ID
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListByAccount retrieves an account's notifications with pagination,
// newest first
func (r *NotificationRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, page, limit int) ([]*domain.Notification, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE account_id = $1`, accountID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

// CountUnread counts an account's unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE account_id = $1 AND read_at IS NULL`,
		accountID,
	).Scan(&count)
	return count, err
}

// MarkRead marks one of the account's notifications read
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64, accountID uuid.UUID) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND account_id = $2
		RETURNING `+notificationColumns,
		id, accountID,
	)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// MarkAllRead marks all of the account's unread notifications read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = now() WHERE account_id = $1 AND read_at IS NULL`,
		accountID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n      domain.Notification
		status string
		data   []byte
	)
	err := row.Scan(
		&n.ID, &n.AccountID, &n.Type, &n.Title, &n.Body, &data,
		&status, &n.SentAt, &n.ReadAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Status = domain.NotificationStatus(status)
	if len(data) > 0 {
		n.Data = json.RawMessage(data)
	}
	return &n, nil
}
