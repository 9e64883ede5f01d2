package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// AgentFilter defines query params for agent listing.
type AgentFilter struct {
	Online  *bool
	OnBreak *bool
	Status  *domain.AgentStatus
	Active  *bool
	Limit   int
	Offset  int
}

// AgentRepository handles persistence for agents. Capacity mutation goes
// through the registry, which serializes Get/Update per agent.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

const agentColumns = `id, name, email, password_hash, role, max_capacity, active_tickets,
       online_flag, status, on_break, break_started_at, break_minutes_today, active_flag,
       created_at, updated_at`

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (name, email, password_hash, role, max_capacity, active_tickets,
            online_flag, status, on_break, break_started_at, break_minutes_today, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		agent.Name,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.MaxCapacity,
		agent.ActiveTickets,
		agent.Online,
		agent.Status,
		agent.OnBreak,
		agent.BreakStartedAt,
		agent.BreakMinutesToday,
		agent.Active,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents
        SET name=$1, email=$2, password_hash=$3, role=$4, max_capacity=$5, active_tickets=$6,
            online_flag=$7, status=$8, on_break=$9, break_started_at=$10,
            break_minutes_today=$11, active_flag=$12, updated_at=NOW()
        WHERE id=$13`
	cmd, err := r.pool.Exec(ctx, query,
		agent.Name,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.MaxCapacity,
		agent.ActiveTickets,
		agent.Online,
		agent.Status,
		agent.OnBreak,
		agent.BreakStartedAt,
		agent.BreakMinutesToday,
		agent.Active,
		agent.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE id=$1`, agentColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE email=$1`, agentColumns)
	return r.fetchSingle(ctx, query, email)
}

func (r *agentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	var agent domain.Agent
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.PasswordHash,
		&agent.Role,
		&agent.MaxCapacity,
		&agent.ActiveTickets,
		&agent.Online,
		&agent.Status,
		&agent.OnBreak,
		&agent.BreakStartedAt,
		&agent.BreakMinutesToday,
		&agent.Active,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) List(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents`, agentColumns)
	args := []any{}
	clauses := []string{}

	if filter.Online != nil {
		args = append(args, *filter.Online)
		clauses = append(clauses, fmt.Sprintf("online_flag=$%d", len(args)))
	}
	if filter.OnBreak != nil {
		args = append(args, *filter.OnBreak)
		clauses = append(clauses, fmt.Sprintf("on_break=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY active_tickets ASC, id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&agent.Email,
			&agent.PasswordHash,
			&agent.Role,
			&agent.MaxCapacity,
			&agent.ActiveTickets,
			&agent.Online,
			&agent.Status,
			&agent.OnBreak,
			&agent.BreakStartedAt,
			&agent.BreakMinutesToday,
			&agent.Active,
			&agent.CreatedAt,
			&agent.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, agent)
	}
	return result, rows.Err()
}
