package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facilityops/facility-service/internal/domain"
)

// NotificationRepository persists per-recipient inbox records.
type NotificationRepository interface {
	// CreateUnlessUnread inserts n unless an unread record with the same
	// (recipient, type, ticket) exists that was created at or after since.
	CreateUnlessUnread(ctx context.Context, n *domain.Notification, since time.Time) (bool, error)
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// MarkRead is idempotent; an already read record keeps its original ReadAt.
	MarkRead(ctx context.Context, recipientID, id string, at time.Time) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, recipient_id, type, title, message, ticket_id, is_read, created_at, read_at`

func (r *notificationRepository) CreateUnlessUnread(ctx context.Context, n *domain.Notification, since time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// serializes concurrent producers for the same triple
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, n.DedupKey()); err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM notifications
            WHERE recipient_id=$1 AND type=$2 AND ticket_id IS NOT DISTINCT FROM $3
              AND is_read = FALSE AND created_at >= $4)`,
		n.RecipientID, n.Type, n.TicketID, since,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, tx.Commit(ctx)
	}

	const insert = `
        INSERT INTO notifications (id, recipient_id, type, title, message, ticket_id, is_read, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7)`
	if _, err := tx.Exec(ctx, insert, n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.TicketID, n.CreatedAt); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications
        WHERE recipient_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.TicketID, &n.IsRead, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read = FALSE`, recipientID).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id string, at time.Time) (*domain.Notification, error) {
	query := `
        UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $1)
        WHERE id=$2 AND recipient_id=$3
        RETURNING ` + notificationColumns
	var n domain.Notification
	err := r.pool.QueryRow(ctx, query, at, id, recipientID).Scan(
		&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.TicketID, &n.IsRead, &n.CreatedAt, &n.ReadAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE recipient_id=$2 AND is_read = FALSE`, at, recipientID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
