package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// SatisfactionRepository persists customer ratings.
type SatisfactionRepository interface {
	Create(ctx context.Context, rating *domain.CustomerSatisfaction) error
	ListByAgentBetween(ctx context.Context, agentID string, from, to time.Time) ([]domain.CustomerSatisfaction, error)
}

type satisfactionRepository struct {
	pool *pgxpool.Pool
}

// NewSatisfactionRepository instantiates the repository.
func NewSatisfactionRepository(pool *pgxpool.Pool) SatisfactionRepository {
	return &satisfactionRepository{pool: pool}
}

func (r *satisfactionRepository) Create(ctx context.Context, rating *domain.CustomerSatisfaction) error {
	const query = `
        INSERT INTO customer_satisfaction (ticket_id, agent_id, rating, comment)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		rating.TicketID,
		rating.AgentID,
		rating.Rating,
		rating.Comment,
	).Scan(&rating.ID, &rating.CreatedAt)
}

func (r *satisfactionRepository) ListByAgentBetween(ctx context.Context, agentID string, from, to time.Time) ([]domain.CustomerSatisfaction, error) {
	const query = `
        SELECT id, ticket_id, agent_id, rating, comment, created_at
        FROM customer_satisfaction
        WHERE agent_id=$1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, agentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CustomerSatisfaction
	for rows.Next() {
		var rating domain.CustomerSatisfaction
		if err := rows.Scan(
			&rating.ID,
			&rating.TicketID,
			&rating.AgentID,
			&rating.Rating,
			&rating.Comment,
			&rating.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rating)
	}
	return result, rows.Err()
}
