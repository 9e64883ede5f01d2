package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// MessageRepository persists observed messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
	CountByTicketAndRole(ctx context.Context, ticketID string, role domain.SenderRole) (int, error)
	// CountForAgentBetween counts messages of the given role on tickets
	// assigned to the agent, within [from, to).
	CountForAgentBetween(ctx context.Context, agentID string, role domain.SenderRole, from, to time.Time) (int, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates the repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, sender_id, sender_role, direction, body)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderID,
		msg.Role,
		msg.Direction,
		msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, sender_id, sender_role, direction, body, created_at
        FROM messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderID,
			&msg.Role,
			&msg.Direction,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) CountByTicketAndRole(ctx context.Context, ticketID string, role domain.SenderRole) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE ticket_id=$1 AND sender_role=$2`
	var count int
	if err := r.pool.QueryRow(ctx, query, ticketID, role).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) CountForAgentBetween(ctx context.Context, agentID string, role domain.SenderRole, from, to time.Time) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM messages m
        JOIN tickets t ON t.id = m.ticket_id
        WHERE t.assigned_agent_id=$1 AND m.sender_role=$2 AND m.created_at >= $3 AND m.created_at < $4`
	var count int
	if err := r.pool.QueryRow(ctx, query, agentID, role, from, to).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
