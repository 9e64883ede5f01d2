package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-engine/internal/domain"
)

// ActivityLogRepository is the write-only audit sink.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
}

type activityLogRepository struct {
	pool *pgxpool.Pool
}

// NewActivityLogRepository instantiates the repository.
func NewActivityLogRepository(pool *pgxpool.Pool) ActivityLogRepository {
	return &activityLogRepository{pool: pool}
}

func (r *activityLogRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	const query = `
        INSERT INTO activity_log (actor_id, action, entity_type, entity_id, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}
