package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// BreakSessionRepository persists agent break sessions. A session is
// opened with a nil end time and closed exactly once.
type BreakSessionRepository interface {
	Open(ctx context.Context, session *domain.AgentBreakSession) error
	Close(ctx context.Context, sessionID string, end time.Time, durationSeconds int) error
	GetOpenByAgent(ctx context.Context, agentID string) (*domain.AgentBreakSession, error)
	ListClosedByAgentBetween(ctx context.Context, agentID string, from, to time.Time) ([]domain.AgentBreakSession, error)
}

type breakSessionRepository struct {
	pool *pgxpool.Pool
}

// NewBreakSessionRepository instantiates the repository.
func NewBreakSessionRepository(pool *pgxpool.Pool) BreakSessionRepository {
	return &breakSessionRepository{pool: pool}
}

func (r *breakSessionRepository) Open(ctx context.Context, session *domain.AgentBreakSession) error {
	const query = `
        INSERT INTO agent_break_sessions (agent_id, start_time)
        VALUES ($1,$2)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		session.AgentID,
		session.StartTime,
	).Scan(&session.ID, &session.CreatedAt)
}

func (r *breakSessionRepository) Close(ctx context.Context, sessionID string, end time.Time, durationSeconds int) error {
	const query = `
        UPDATE agent_break_sessions SET end_time=$1, duration_seconds=$2
        WHERE id=$3 AND end_time IS NULL`
	cmd, err := r.pool.Exec(ctx, query, end, durationSeconds, sessionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *breakSessionRepository) GetOpenByAgent(ctx context.Context, agentID string) (*domain.AgentBreakSession, error) {
	const query = `
        SELECT id, agent_id, start_time, end_time, duration_seconds, created_at
        FROM agent_break_sessions WHERE agent_id=$1 AND end_time IS NULL
        ORDER BY start_time DESC LIMIT 1`
	var session domain.AgentBreakSession
	if err := r.pool.QueryRow(ctx, query, agentID).Scan(
		&session.ID,
		&session.AgentID,
		&session.StartTime,
		&session.EndTime,
		&session.DurationSeconds,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *breakSessionRepository) ListClosedByAgentBetween(ctx context.Context, agentID string, from, to time.Time) ([]domain.AgentBreakSession, error) {
	const query = `
        SELECT id, agent_id, start_time, end_time, duration_seconds, created_at
        FROM agent_break_sessions
        WHERE agent_id=$1 AND end_time IS NOT NULL AND start_time >= $2 AND start_time < $3
        ORDER BY start_time ASC`
	rows, err := r.pool.Query(ctx, query, agentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AgentBreakSession
	for rows.Next() {
		var session domain.AgentBreakSession
		if err := rows.Scan(
			&session.ID,
			&session.AgentID,
			&session.StartTime,
			&session.EndTime,
			&session.DurationSeconds,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	return result, rows.Err()
}
