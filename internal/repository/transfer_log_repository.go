package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// TransferLogRepository is the append-only sink for ticket transfers.
type TransferLogRepository interface {
	Append(ctx context.Context, entry *domain.TicketTransferLog) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketTransferLog, error)
}

type transferLogRepository struct {
	pool *pgxpool.Pool
}

// NewTransferLogRepository instantiates the repository.
func NewTransferLogRepository(pool *pgxpool.Pool) TransferLogRepository {
	return &transferLogRepository{pool: pool}
}

func (r *transferLogRepository) Append(ctx context.Context, entry *domain.TicketTransferLog) error {
	const query = `
        INSERT INTO ticket_transfer_logs (ticket_id, from_agent_id, to_agent_id, actor_id, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.FromAgentID,
		entry.ToAgentID,
		entry.ActorID,
		entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *transferLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketTransferLog, error) {
	const query = `
        SELECT id, ticket_id, from_agent_id, to_agent_id, actor_id, reason, created_at
        FROM ticket_transfer_logs WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketTransferLog
	for rows.Next() {
		var entry domain.TicketTransferLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.FromAgentID,
			&entry.ToAgentID,
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
