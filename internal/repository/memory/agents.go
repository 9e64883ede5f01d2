package memory

import (
	"context"
	"sort"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/repository"
)

type agentRepo struct {
	store *Store
}

func (r *agentRepo) Create(ctx context.Context, agent *domain.Agent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if agent.ID == "" {
		agent.ID = newID()
	}
	agent.CreatedAt = r.store.stamp(agent.CreatedAt)
	agent.UpdatedAt = agent.CreatedAt
	r.store.agents[agent.ID] = *agent
	return nil
}

func (r *agentRepo) Update(ctx context.Context, agent *domain.Agent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.agents[agent.ID]; !ok {
		return ErrNotFound
	}
	agent.UpdatedAt = r.store.now()
	r.store.agents[agent.ID] = *agent
	return nil
}

func (r *agentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	agent, ok := r.store.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &agent, nil
}

func (r *agentRepo) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, agent := range r.store.agents {
		if agent.Email == email {
			out := agent
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *agentRepo) List(ctx context.Context, filter repository.AgentFilter) ([]domain.Agent, error) {
	r.store.mu.RLock()
	var result []domain.Agent
	for _, agent := range r.store.agents {
		if filter.Online != nil && agent.Online != *filter.Online {
			continue
		}
		if filter.OnBreak != nil && agent.OnBreak != *filter.OnBreak {
			continue
		}
		if filter.Status != nil && agent.Status != *filter.Status {
			continue
		}
		if filter.Active != nil && agent.Active != *filter.Active {
			continue
		}
		result = append(result, agent)
	}
	r.store.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].ActiveTickets != result[j].ActiveTickets {
			return result[i].ActiveTickets < result[j].ActiveTickets
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
