package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// StateLogRepository is the append-only sink for ticket status transitions.
type StateLogRepository interface {
	Append(ctx context.Context, entry *domain.TicketStateLog) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStateLog, error)
}

type stateLogRepository struct {
	pool *pgxpool.Pool
}

// NewStateLogRepository instantiates the repository.
func NewStateLogRepository(pool *pgxpool.Pool) StateLogRepository {
	return &stateLogRepository{pool: pool}
}

func (r *stateLogRepository) Append(ctx context.Context, entry *domain.TicketStateLog) error {
	const query = `
        INSERT INTO ticket_state_logs (ticket_id, old_state, new_state, actor_id, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.OldState,
		entry.NewState,
		entry.ActorID,
		entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *stateLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStateLog, error) {
	const query = `
        SELECT id, ticket_id, old_state, new_state, actor_id, reason, created_at
        FROM ticket_state_logs WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStateLog
	for rows.Next() {
		var entry domain.TicketStateLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.OldState,
			&entry.NewState,
			&entry.ActorID,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
