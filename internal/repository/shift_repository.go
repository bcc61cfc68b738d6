package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facilityops/facility-service/internal/domain"
)

// ShiftRepository persists check-in windows. At most one open record exists per
// (user, property); the database enforces this with a partial unique index.
type ShiftRepository interface {
	Open(ctx context.Context, record *domain.ShiftRecord) error
	CloseOpen(ctx context.Context, userID, propertyID string, at time.Time) (*domain.ShiftRecord, error)
	GetOpen(ctx context.Context, userID, propertyID string) (*domain.ShiftRecord, error)
	ListOpen(ctx context.Context, propertyID string) ([]domain.ShiftRecord, error)
}

type shiftRepository struct {
	pool *pgxpool.Pool
}

// NewShiftRepository instantiates the repository.
func NewShiftRepository(pool *pgxpool.Pool) ShiftRepository {
	return &shiftRepository{pool: pool}
}

const uniqueViolation = "23505"

func (r *shiftRepository) Open(ctx context.Context, record *domain.ShiftRecord) error {
	const query = `
        INSERT INTO shift_records (id, user_id, property_id, checked_in, checked_in_at)
        VALUES ($1,$2,$3,TRUE,$4)`
	_, err := r.pool.Exec(ctx, query, record.ID, record.UserID, record.PropertyID, record.CheckedInAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrShiftAlreadyOpen
	}
	if err != nil {
		return err
	}
	record.CheckedIn = true
	return nil
}

func (r *shiftRepository) CloseOpen(ctx context.Context, userID, propertyID string, at time.Time) (*domain.ShiftRecord, error) {
	const query = `
        UPDATE shift_records SET checked_in=FALSE, checked_out_at=$1
        WHERE user_id=$2 AND property_id=$3 AND checked_out_at IS NULL
        RETURNING id, user_id, property_id, checked_in, checked_in_at, checked_out_at`
	var record domain.ShiftRecord
	err := r.pool.QueryRow(ctx, query, at, userID, propertyID).Scan(
		&record.ID, &record.UserID, &record.PropertyID, &record.CheckedIn, &record.CheckedInAt, &record.CheckedOutAt,
	)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return nil, ErrNoOpenShift
		}
		return nil, err
	}
	return &record, nil
}

func (r *shiftRepository) GetOpen(ctx context.Context, userID, propertyID string) (*domain.ShiftRecord, error) {
	const query = `
        SELECT id, user_id, property_id, checked_in, checked_in_at, checked_out_at
        FROM shift_records WHERE user_id=$1 AND property_id=$2 AND checked_out_at IS NULL`
	var record domain.ShiftRecord
	err := r.pool.QueryRow(ctx, query, userID, propertyID).Scan(
		&record.ID, &record.UserID, &record.PropertyID, &record.CheckedIn, &record.CheckedInAt, &record.CheckedOutAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (r *shiftRepository) ListOpen(ctx context.Context, propertyID string) ([]domain.ShiftRecord, error) {
	const query = `
        SELECT id, user_id, property_id, checked_in, checked_in_at, checked_out_at
        FROM shift_records WHERE property_id=$1 AND checked_out_at IS NULL ORDER BY checked_in_at ASC`
	rows, err := r.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ShiftRecord
	for rows.Next() {
		var record domain.ShiftRecord
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.PropertyID, &record.CheckedIn, &record.CheckedInAt, &record.CheckedOutAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
