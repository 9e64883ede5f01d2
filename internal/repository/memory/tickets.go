package memory

import (
	"context"
	"sort"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/repository"
)

type ticketRepo struct {
	store *Store
}

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = newID()
	}
	ticket.CreatedAt = r.store.stamp(ticket.CreatedAt)
	ticket.UpdatedAt = ticket.CreatedAt
	r.store.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tickets[ticket.ID]; !ok {
		return ErrNotFound
	}
	ticket.UpdatedAt = r.store.now()
	r.store.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

func (r *ticketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, ticket := range r.store.tickets {
		if ticket.Number == number {
			out := ticket
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *ticketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.store.mu.RLock()
	var result []domain.Ticket
	for _, ticket := range r.store.tickets {
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.AssignedAgentID != nil &&
			(ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != *filter.AssignedAgentID) {
			continue
		}
		if filter.CurrentAgentID != nil &&
			(ticket.CurrentAgentID == nil || *ticket.CurrentAgentID != *filter.CurrentAgentID) {
			continue
		}
		if filter.Unassigned && ticket.CurrentAgentID != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(ticket.Status, filter.Statuses) {
			continue
		}
		if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && !ticket.CreatedAt.Before(*filter.CreatedTo) {
			continue
		}
		result = append(result, ticket)
	}
	r.store.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *ticketRepo) CountOpenByCurrentAgent(ctx context.Context, agentID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, ticket := range r.store.tickets {
		if ticket.Status == domain.TicketStatusOpen &&
			ticket.CurrentAgentID != nil && *ticket.CurrentAgentID == agentID {
			count++
		}
	}
	return count, nil
}

func statusIn(status domain.TicketStatus, statuses []domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
