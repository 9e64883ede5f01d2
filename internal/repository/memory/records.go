package memory

import (
	"context"
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

type messageRepo struct {
	store *Store
}

func (r *messageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if msg.ID == "" {
		msg.ID = newID()
	}
	msg.CreatedAt = r.store.stamp(msg.CreatedAt)
	r.store.messages[msg.ID] = *msg
	return nil
}

func (r *messageRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	r.store.mu.RLock()
	var result []domain.Message
	for _, msg := range r.store.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	r.store.mu.RUnlock()
	return sortedByCreation(result, func(m domain.Message) time.Time { return m.CreatedAt }), nil
}

func (r *messageRepo) CountByTicketAndRole(ctx context.Context, ticketID string, role domain.SenderRole) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, msg := range r.store.messages {
		if msg.TicketID == ticketID && msg.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *messageRepo) CountForAgentBetween(ctx context.Context, agentID string, role domain.SenderRole, from, to time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, msg := range r.store.messages {
		if msg.Role != role || !inRange(msg.CreatedAt, from, to) {
			continue
		}
		ticket, ok := r.store.tickets[msg.TicketID]
		if !ok || ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != agentID {
			continue
		}
		count++
	}
	return count, nil
}

type kpiRepo struct {
	store *Store
}

func dailyKey(agentID string, date time.Time) string {
	return agentID + "|" + date.Format("2006-01-02")
}

func monthlyKey(agentID string, month time.Time) string {
	return agentID + "|" + month.Format("2006-01")
}

func (r *kpiRepo) UpsertDaily(ctx context.Context, kpi *domain.AgentKPI) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := dailyKey(kpi.AgentID, kpi.Date)
	if existing, ok := r.store.dailyKPIs[key]; ok {
		kpi.ID = existing.ID
		kpi.CreatedAt = existing.CreatedAt
	} else {
		kpi.ID = newID()
		kpi.CreatedAt = r.store.now()
	}
	kpi.UpdatedAt = r.store.now()
	r.store.dailyKPIs[key] = *kpi
	return nil
}

func (r *kpiRepo) GetDaily(ctx context.Context, agentID string, date time.Time) (*domain.AgentKPI, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	kpi, ok := r.store.dailyKPIs[dailyKey(agentID, date)]
	if !ok {
		return nil, ErrNotFound
	}
	return &kpi, nil
}

func (r *kpiRepo) UpsertMonthly(ctx context.Context, kpi *domain.AgentKPIMonthly) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := monthlyKey(kpi.AgentID, kpi.Month)
	if existing, ok := r.store.monthlyKPIs[key]; ok {
		kpi.ID = existing.ID
		kpi.CreatedAt = existing.CreatedAt
	} else {
		kpi.ID = newID()
		kpi.CreatedAt = r.store.now()
	}
	kpi.UpdatedAt = r.store.now()
	r.store.monthlyKPIs[key] = *kpi
	return nil
}

func (r *kpiRepo) GetMonthly(ctx context.Context, agentID string, month time.Time) (*domain.AgentKPIMonthly, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	kpi, ok := r.store.monthlyKPIs[monthlyKey(agentID, month)]
	if !ok {
		return nil, ErrNotFound
	}
	return &kpi, nil
}

type satisfactionRepo struct {
	store *Store
}

func (r *satisfactionRepo) Create(ctx context.Context, rating *domain.CustomerSatisfaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if rating.ID == "" {
		rating.ID = newID()
	}
	rating.CreatedAt = r.store.stamp(rating.CreatedAt)
	r.store.ratings = append(r.store.ratings, *rating)
	return nil
}

func (r *satisfactionRepo) ListByAgentBetween(ctx context.Context, agentID string, from, to time.Time) ([]domain.CustomerSatisfaction, error) {
	r.store.mu.RLock()
	var result []domain.CustomerSatisfaction
	for _, rating := range r.store.ratings {
		if rating.AgentID == nil || *rating.AgentID != agentID {
			continue
		}
		if !inRange(rating.CreatedAt, from, to) {
			continue
		}
		result = append(result, rating)
	}
	r.store.mu.RUnlock()
	return sortedByCreation(result, func(c domain.CustomerSatisfaction) time.Time { return c.CreatedAt }), nil
}

type customerRepo struct {
	store *Store
}

func (r *customerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if customer.ID == "" {
		customer.ID = newID()
	}
	customer.CreatedAt = r.store.stamp(customer.CreatedAt)
	customer.UpdatedAt = customer.CreatedAt
	r.store.customers[customer.ID] = *customer
	return nil
}

func (r *customerRepo) Update(ctx context.Context, customer *domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.customers[customer.ID]; !ok {
		return ErrNotFound
	}
	customer.UpdatedAt = r.store.now()
	r.store.customers[customer.ID] = *customer
	return nil
}

func (r *customerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	customer, ok := r.store.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &customer, nil
}

func (r *customerRepo) GetByWaID(ctx context.Context, waID string) (*domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, customer := range r.store.customers {
		if customer.WaID == waID {
			out := customer
			return &out, nil
		}
	}
	return nil, ErrNotFound
}
