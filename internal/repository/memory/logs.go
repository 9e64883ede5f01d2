package memory

import (
	"context"
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

type stateLogRepo struct {
	store *Store
}

func (r *stateLogRepo) Append(ctx context.Context, entry *domain.TicketStateLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	entry.CreatedAt = r.store.stamp(entry.CreatedAt)
	r.store.stateLogs = append(r.store.stateLogs, *entry)
	return nil
}

func (r *stateLogRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketStateLog, error) {
	r.store.mu.RLock()
	var result []domain.TicketStateLog
	for _, entry := range r.store.stateLogs {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	r.store.mu.RUnlock()
	return sortedByCreation(result, func(e domain.TicketStateLog) time.Time { return e.CreatedAt }), nil
}

type transferLogRepo struct {
	store *Store
}

func (r *transferLogRepo) Append(ctx context.Context, entry *domain.TicketTransferLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	entry.CreatedAt = r.store.stamp(entry.CreatedAt)
	r.store.transferLogs = append(r.store.transferLogs, *entry)
	return nil
}

func (r *transferLogRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketTransferLog, error) {
	r.store.mu.RLock()
	var result []domain.TicketTransferLog
	for _, entry := range r.store.transferLogs {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	r.store.mu.RUnlock()
	return sortedByCreation(result, func(e domain.TicketTransferLog) time.Time { return e.CreatedAt }), nil
}

type activityLogRepo struct {
	store *Store
}

func (r *activityLogRepo) Append(ctx context.Context, entry *domain.ActivityLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	entry.CreatedAt = r.store.stamp(entry.CreatedAt)
	r.store.activity = append(r.store.activity, *entry)
	return nil
}
