package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID      *string
	AssignedAgentID *string
	CurrentAgentID  *string
	Statuses        []domain.TicketStatus
	Unassigned      bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpenByCurrentAgent(ctx context.Context, agentID string) (int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, customer_id, assigned_agent_id, current_agent_id,
       status, category, priority, is_delayed, delay_started_at, total_delay_minutes, delay_count,
       created_at, category_selected_at, first_response_at, last_message_at,
       last_customer_message_at, last_agent_message_at, closed_at,
       response_time_seconds, handling_time_seconds, messages_count,
       closed_by_id, closure_reason, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, customer_id, assigned_agent_id, current_agent_id,
            status, category, priority, is_delayed, total_delay_minutes, delay_count, messages_count, closure_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Number,
		ticket.CustomerID,
		ticket.AssignedAgentID,
		ticket.CurrentAgentID,
		ticket.Status,
		ticket.Category,
		ticket.Priority,
		ticket.IsDelayed,
		ticket.TotalDelayMinutes,
		ticket.DelayCount,
		ticket.MessagesCount,
		ticket.ClosureReason,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_agent_id=$1, current_agent_id=$2, status=$3, category=$4,
            priority=$5, is_delayed=$6, delay_started_at=$7, total_delay_minutes=$8, delay_count=$9,
            category_selected_at=$10, first_response_at=$11, last_message_at=$12,
            last_customer_message_at=$13, last_agent_message_at=$14, closed_at=$15,
            response_time_seconds=$16, handling_time_seconds=$17, messages_count=$18,
            closed_by_id=$19, closure_reason=$20, updated_at=NOW()
        WHERE id=$21`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.AssignedAgentID,
		ticket.CurrentAgentID,
		ticket.Status,
		ticket.Category,
		ticket.Priority,
		ticket.IsDelayed,
		ticket.DelayStartedAt,
		ticket.TotalDelayMinutes,
		ticket.DelayCount,
		ticket.CategorySelectedAt,
		ticket.FirstResponseAt,
		ticket.LastMessageAt,
		ticket.LastCustomerMessageAt,
		ticket.LastAgentMessageAt,
		ticket.ClosedAt,
		ticket.ResponseTimeSeconds,
		ticket.HandlingTimeSeconds,
		ticket.MessagesCount,
		ticket.ClosedByID,
		ticket.ClosureReason,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_number=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssignedAgentID != nil {
		args = append(args, *filter.AssignedAgentID)
		clauses = append(clauses, fmt.Sprintf("assigned_agent_id=$%d", len(args)))
	}
	if filter.CurrentAgentID != nil {
		args = append(args, *filter.CurrentAgentID)
		clauses = append(clauses, fmt.Sprintf("current_agent_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "current_agent_id IS NULL")
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
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountOpenByCurrentAgent(ctx context.Context, agentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE current_agent_id=$1 AND status=$2`
	var count int
	if err := r.pool.QueryRow(ctx, query, agentID, domain.TicketStatusOpen).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.CustomerID,
		&ticket.AssignedAgentID,
		&ticket.CurrentAgentID,
		&ticket.Status,
		&ticket.Category,
		&ticket.Priority,
		&ticket.IsDelayed,
		&ticket.DelayStartedAt,
		&ticket.TotalDelayMinutes,
		&ticket.DelayCount,
		&ticket.CreatedAt,
		&ticket.CategorySelectedAt,
		&ticket.FirstResponseAt,
		&ticket.LastMessageAt,
		&ticket.LastCustomerMessageAt,
		&ticket.LastAgentMessageAt,
		&ticket.ClosedAt,
		&ticket.ResponseTimeSeconds,
		&ticket.HandlingTimeSeconds,
		&ticket.MessagesCount,
		&ticket.ClosedByID,
		&ticket.ClosureReason,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
