// Package registry is the source of truth for agent availability and
// capacity. Every capacity mutation runs under a per-agent mutex held for
// the whole read-modify-write, so concurrent ticket creation and closure
// can never oversubscribe a slot.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/repository"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// OpenTicketCounter reports the live open-ticket count for an agent. The
// registry uses it to reconcile the authoritative counter after bulk
// reassignment.
type OpenTicketCounter interface {
	CountOpenByCurrentAgent(ctx context.Context, agentID string) (int, error)
}

// Registry serializes agent state mutation.
type Registry struct {
	agents  repository.AgentRepository
	counter OpenTicketCounter
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the registry.
func New(agents repository.AgentRepository, counter OpenTicketCounter, logger *zap.Logger) *Registry {
	return &Registry{
		agents:  agents,
		counter: counter,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (r *Registry) lockFor(agentID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[agentID] = lock
	}
	return lock
}

// ListAvailable returns agents eligible for new assignments, least loaded
// first, ties broken by agent ID for determinism.
func (r *Registry) ListAvailable(ctx context.Context) ([]domain.Agent, error) {
	online := true
	onBreak := false
	active := true
	status := domain.AgentStatusAvailable
	agents, err := r.agents.List(ctx, repository.AgentFilter{
		Online:  &online,
		OnBreak: &onBreak,
		Active:  &active,
		Status:  &status,
	})
	if err != nil {
		return nil, err
	}

	eligible := agents[:0]
	for _, agent := range agents {
		if agent.ActiveTickets < agent.MaxCapacity {
			eligible = append(eligible, agent)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].ActiveTickets != eligible[j].ActiveTickets {
			return eligible[i].ActiveTickets < eligible[j].ActiveTickets
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible, nil
}

// ReserveSlot atomically claims one capacity slot. The status flips to
// busy in the same operation when the slot fills the agent.
func (r *Registry) ReserveSlot(ctx context.Context, agentID string) (*domain.Agent, error) {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.getAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.CanReceive() {
		return nil, apperrors.NewCapacityExceeded(agentID)
	}

	agent.ActiveTickets++
	if agent.ActiveTickets >= agent.MaxCapacity {
		agent.Status = domain.AgentStatusBusy
	}
	if err := r.agents.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// ReleaseSlot atomically returns one capacity slot, floored at zero.
func (r *Registry) ReleaseSlot(ctx context.Context, agentID string) (*domain.Agent, error) {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.getAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	if agent.ActiveTickets > 0 {
		agent.ActiveTickets--
	}
	if agent.ActiveTickets < agent.MaxCapacity && agent.Online && !agent.OnBreak &&
		agent.Status == domain.AgentStatusBusy {
		agent.Status = domain.AgentStatusAvailable
	}
	if err := r.agents.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// SetOnline toggles presence. Going offline zeroes the active count and
// clears any break flags; the caller is responsible for draining tickets
// first.
func (r *Registry) SetOnline(ctx context.Context, agentID string, online bool) (*domain.Agent, error) {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.getAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	agent.Online = online
	if online {
		// Logins can repeat while the agent is loaded; status always
		// derives from the live count, never resets to available.
		if !agent.OnBreak {
			if agent.ActiveTickets >= agent.MaxCapacity {
				agent.Status = domain.AgentStatusBusy
			} else {
				agent.Status = domain.AgentStatusAvailable
			}
		}
	} else {
		agent.Status = domain.AgentStatusOffline
		agent.ActiveTickets = 0
		agent.OnBreak = false
		agent.BreakStartedAt = nil
	}
	if err := r.agents.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// SetBreak toggles the break flag. Entering a break zeroes the active
// count and records the start time; leaving accumulates the elapsed
// minutes into BreakMinutesToday and restores status from load. The
// elapsed duration is returned on exit (zero on entry).
func (r *Registry) SetBreak(ctx context.Context, agentID string, on bool, now time.Time) (*domain.Agent, time.Duration, error) {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.getAgent(ctx, agentID)
	if err != nil {
		return nil, 0, err
	}

	var elapsed time.Duration
	if on {
		if agent.OnBreak {
			return nil, 0, apperrors.NewAlreadyOnBreak(agentID)
		}
		agent.OnBreak = true
		agent.BreakStartedAt = &now
		agent.Status = domain.AgentStatusOnBreak
		agent.ActiveTickets = 0
	} else {
		if !agent.OnBreak {
			return nil, 0, apperrors.NewNotOnBreak(agentID)
		}
		if agent.BreakStartedAt != nil {
			elapsed = now.Sub(*agent.BreakStartedAt)
			agent.BreakMinutesToday += int(elapsed.Minutes())
		}
		agent.OnBreak = false
		agent.BreakStartedAt = nil
		if agent.ActiveTickets >= agent.MaxCapacity {
			agent.Status = domain.AgentStatusBusy
		} else {
			agent.Status = domain.AgentStatusAvailable
		}
	}
	if err := r.agents.Update(ctx, agent); err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return agent, elapsed, nil
}

// Reconcile recomputes the authoritative active count from the live open
// ticket set, used after bulk redistribution left a partial drain behind.
func (r *Registry) Reconcile(ctx context.Context, agentID string) (*domain.Agent, error) {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := r.getAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	count, err := r.counter.CountOpenByCurrentAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if agent.ActiveTickets != count {
		r.logger.Warn("reconciled agent ticket count",
			zap.String("agent_id", agentID),
			zap.Int("recorded", agent.ActiveTickets),
			zap.Int("actual", count))
	}
	agent.ActiveTickets = count
	if agent.Online && !agent.OnBreak {
		if count >= agent.MaxCapacity {
			agent.Status = domain.AgentStatusBusy
		} else {
			agent.Status = domain.AgentStatusAvailable
		}
	}
	if err := r.agents.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// Get returns the current agent record.
func (r *Registry) Get(ctx context.Context, agentID string) (*domain.Agent, error) {
	return r.getAgent(ctx, agentID)
}

func (r *Registry) getAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}
