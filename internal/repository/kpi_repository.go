package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// KPIRepository persists derived scorecards. Rows are overwritten in full
// on each recomputation (upsert by period key), never patched.
type KPIRepository interface {
	UpsertDaily(ctx context.Context, kpi *domain.AgentKPI) error
	GetDaily(ctx context.Context, agentID string, date time.Time) (*domain.AgentKPI, error)
	UpsertMonthly(ctx context.Context, kpi *domain.AgentKPIMonthly) error
	GetMonthly(ctx context.Context, agentID string, month time.Time) (*domain.AgentKPIMonthly, error)
}

type kpiRepository struct {
	pool *pgxpool.Pool
}

// NewKPIRepository instantiates the repository.
func NewKPIRepository(pool *pgxpool.Pool) KPIRepository {
	return &kpiRepository{pool: pool}
}

func (r *kpiRepository) UpsertDaily(ctx context.Context, kpi *domain.AgentKPI) error {
	const query = `
        INSERT INTO agent_kpi_daily (agent_id, kpi_date, total_tickets, closed_tickets,
            avg_response_seconds, messages_sent, messages_received, delay_count,
            break_seconds, break_count, satisfaction_score, first_response_rate,
            resolution_rate, overall_score)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (agent_id, kpi_date) DO UPDATE SET
            total_tickets=EXCLUDED.total_tickets,
            closed_tickets=EXCLUDED.closed_tickets,
            avg_response_seconds=EXCLUDED.avg_response_seconds,
            messages_sent=EXCLUDED.messages_sent,
            messages_received=EXCLUDED.messages_received,
            delay_count=EXCLUDED.delay_count,
            break_seconds=EXCLUDED.break_seconds,
            break_count=EXCLUDED.break_count,
            satisfaction_score=EXCLUDED.satisfaction_score,
            first_response_rate=EXCLUDED.first_response_rate,
            resolution_rate=EXCLUDED.resolution_rate,
            overall_score=EXCLUDED.overall_score,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		kpi.AgentID,
		kpi.Date,
		kpi.TotalTickets,
		kpi.ClosedTickets,
		kpi.AvgResponseSeconds,
		kpi.MessagesSent,
		kpi.MessagesReceived,
		kpi.DelayCount,
		kpi.BreakSeconds,
		kpi.BreakCount,
		kpi.SatisfactionScore,
		kpi.FirstResponseRate,
		kpi.ResolutionRate,
		kpi.OverallScore,
	).Scan(&kpi.ID, &kpi.CreatedAt, &kpi.UpdatedAt)
}

func (r *kpiRepository) GetDaily(ctx context.Context, agentID string, date time.Time) (*domain.AgentKPI, error) {
	const query = `
        SELECT id, agent_id, kpi_date, total_tickets, closed_tickets, avg_response_seconds,
               messages_sent, messages_received, delay_count, break_seconds, break_count,
               satisfaction_score, first_response_rate, resolution_rate, overall_score,
               created_at, updated_at
        FROM agent_kpi_daily WHERE agent_id=$1 AND kpi_date=$2`
	var kpi domain.AgentKPI
	if err := r.pool.QueryRow(ctx, query, agentID, date).Scan(
		&kpi.ID,
		&kpi.AgentID,
		&kpi.Date,
		&kpi.TotalTickets,
		&kpi.ClosedTickets,
		&kpi.AvgResponseSeconds,
		&kpi.MessagesSent,
		&kpi.MessagesReceived,
		&kpi.DelayCount,
		&kpi.BreakSeconds,
		&kpi.BreakCount,
		&kpi.SatisfactionScore,
		&kpi.FirstResponseRate,
		&kpi.ResolutionRate,
		&kpi.OverallScore,
		&kpi.CreatedAt,
		&kpi.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &kpi, nil
}

func (r *kpiRepository) UpsertMonthly(ctx context.Context, kpi *domain.AgentKPIMonthly) error {
	const query = `
        INSERT INTO agent_kpi_monthly (agent_id, kpi_month, total_tickets, closed_tickets,
            avg_response_seconds, messages_sent, messages_received, delay_count,
            satisfaction_score, overall_score, rank)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (agent_id, kpi_month) DO UPDATE SET
            total_tickets=EXCLUDED.total_tickets,
            closed_tickets=EXCLUDED.closed_tickets,
            avg_response_seconds=EXCLUDED.avg_response_seconds,
            messages_sent=EXCLUDED.messages_sent,
            messages_received=EXCLUDED.messages_received,
            delay_count=EXCLUDED.delay_count,
            satisfaction_score=EXCLUDED.satisfaction_score,
            overall_score=EXCLUDED.overall_score,
            rank=EXCLUDED.rank,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		kpi.AgentID,
		kpi.Month,
		kpi.TotalTickets,
		kpi.ClosedTickets,
		kpi.AvgResponseSeconds,
		kpi.MessagesSent,
		kpi.MessagesReceived,
		kpi.DelayCount,
		kpi.SatisfactionScore,
		kpi.OverallScore,
		kpi.Rank,
	).Scan(&kpi.ID, &kpi.CreatedAt, &kpi.UpdatedAt)
}

func (r *kpiRepository) GetMonthly(ctx context.Context, agentID string, month time.Time) (*domain.AgentKPIMonthly, error) {
	const query = `
        SELECT id, agent_id, kpi_month, total_tickets, closed_tickets, avg_response_seconds,
               messages_sent, messages_received, delay_count, satisfaction_score,
               overall_score, rank, created_at, updated_at
        FROM agent_kpi_monthly WHERE agent_id=$1 AND kpi_month=$2`
	var kpi domain.AgentKPIMonthly
	if err := r.pool.QueryRow(ctx, query, agentID, month).Scan(
		&kpi.ID,
		&kpi.AgentID,
		&kpi.Month,
		&kpi.TotalTickets,
		&kpi.ClosedTickets,
		&kpi.AvgResponseSeconds,
		&kpi.MessagesSent,
		&kpi.MessagesReceived,
		&kpi.DelayCount,
		&kpi.SatisfactionScore,
		&kpi.OverallScore,
		&kpi.Rank,
		&kpi.CreatedAt,
		&kpi.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &kpi, nil
}
