package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facilityops/facility-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	OrganizationID string
	PropertyIDs    []string
	CreatorID      *string
	AssigneeID     *string
	Statuses       []domain.TicketStatus
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	ResolvedBefore *time.Time
	OldestFirst    bool
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateIfUnchanged writes ticket only if the stored row still has the expected
	// status and version. Same-status writes are detected through the version.
	UpdateIfUnchanged(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, version int64) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountActiveByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	HardDelete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, display_code, title, description, category, priority, status, status_reason,
               property_id, organization_id, creator_id, assignee_id, raised_by_role, created_at, updated_at,
               work_started_at, resolved_at, sla_paused, sla_pause_started_at, sla_accumulated_pause_seconds, deleted_at,
               version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, display_code, title, description, category, priority, status, status_reason,
            property_id, organization_id, creator_id, assignee_id, raised_by_role, created_at, updated_at,
            work_started_at, resolved_at, sla_paused, sla_pause_started_at, sla_accumulated_pause_seconds, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.DisplayCode,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.StatusReason,
		ticket.PropertyID,
		ticket.OrganizationID,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.RaisedByRole,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.WorkStartedAt,
		ticket.ResolvedAt,
		ticket.SLAPaused,
		ticket.SLAPauseStartedAt,
		ticket.SLAAccumulatedPauseSeconds,
		ticket.Version,
	)
	return err
}

func (r *ticketRepository) UpdateIfUnchanged(ctx context.Context, ticket *domain.Ticket, status domain.TicketStatus, version int64) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, status_reason=$4, assignee_id=$5, updated_at=$6,
            work_started_at=$7, resolved_at=$8, sla_paused=$9, sla_pause_started_at=$10, sla_accumulated_pause_seconds=$11,
            version=$12
        WHERE id=$13 AND status=$14 AND version=$15 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.StatusReason,
		ticket.AssigneeID,
		ticket.UpdatedAt,
		ticket.WorkStartedAt,
		ticket.ResolvedAt,
		ticket.SLAPaused,
		ticket.SLAPauseStartedAt,
		ticket.SLAAccumulatedPauseSeconds,
		ticket.Version,
		ticket.ID,
		status,
		version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var current int64
	err = r.pool.QueryRow(ctx, `SELECT version FROM tickets WHERE id=$1 AND deleted_at IS NULL`, ticket.ID).Scan(&current)
	if err != nil {
		return notFound(err)
	}
	return ErrStaleTicket
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.OrganizationID != "" {
		args = append(args, filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if len(filter.PropertyIDs) > 0 {
		args = append(args, filter.PropertyIDs)
		clauses = append(clauses, fmt.Sprintf("property_id = ANY($%d)", len(args)))
	}
	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.ResolvedBefore != nil {
		args = append(args, *filter.ResolvedBefore)
		clauses = append(clauses, fmt.Sprintf("resolved_at < $%d", len(args)))
	}

	order := "updated_at DESC, id ASC"
	if filter.OldestFirst {
		order = "created_at ASC, id ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), order, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(assigneeIDs))
	if len(assigneeIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assignee_id, COUNT(*) FROM tickets
        WHERE assignee_id = ANY($1) AND status = ANY($2) AND deleted_at IS NULL
        GROUP BY assignee_id`
	active := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		active[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, query, assigneeIDs, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *ticketRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) HardDelete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.DisplayCode,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.StatusReason,
		&ticket.PropertyID,
		&ticket.OrganizationID,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.RaisedByRole,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.WorkStartedAt,
		&ticket.ResolvedAt,
		&ticket.SLAPaused,
		&ticket.SLAPauseStartedAt,
		&ticket.SLAAccumulatedPauseSeconds,
		&ticket.DeletedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
