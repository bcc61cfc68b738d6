package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facilityops/facility-service/internal/domain"
)

// StaffRepository handles persistence for staff members and their property scopes.
type StaffRepository interface {
	Upsert(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	OrganizationID string
	PropertyID     *string
	Roles          []domain.RoleName
	Active         *bool
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffSelect = `
        SELECT s.id, s.name, s.role, s.organization_id, s.skills, s.active_flag, s.created_at, s.updated_at,
               COALESCE(ARRAY(SELECT p.property_id FROM staff_properties p WHERE p.staff_id = s.id ORDER BY p.property_id), '{}')
        FROM staff_members s`

func (r *staffRepository) Upsert(ctx context.Context, staff *domain.StaffMember) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO staff_members (id, name, role, organization_id, skills, active_flag, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE
        SET name=EXCLUDED.name, role=EXCLUDED.role, organization_id=EXCLUDED.organization_id,
            skills=EXCLUDED.skills, active_flag=EXCLUDED.active_flag, updated_at=EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, query,
		staff.ID,
		staff.Name,
		staff.Role,
		staff.OrganizationID,
		staff.Skills,
		staff.Active,
		staff.CreatedAt,
		staff.UpdatedAt,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM staff_properties WHERE staff_id=$1`, staff.ID); err != nil {
		return err
	}
	for _, propertyID := range staff.PropertyIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO staff_properties (staff_id, property_id) VALUES ($1,$2)`, staff.ID, propertyID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	staff, err := scanStaff(r.pool.QueryRow(ctx, staffSelect+` WHERE s.id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	query := staffSelect
	args := []any{}
	clauses := []string{}

	if filter.OrganizationID != "" {
		args = append(args, filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("s.organization_id=$%d", len(args)))
	}
	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM staff_properties p WHERE p.staff_id = s.id AND p.property_id=$%d)", len(args)))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, roles)
		clauses = append(clauses, fmt.Sprintf("s.role = ANY($%d)", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("s.active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY s.id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	return result, rows.Err()
}

func scanStaff(row pgx.Row) (*domain.StaffMember, error) {
	var staff domain.StaffMember
	if err := row.Scan(
		&staff.ID,
		&staff.Name,
		&staff.Role,
		&staff.OrganizationID,
		&staff.Skills,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
		&staff.PropertyIDs,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
