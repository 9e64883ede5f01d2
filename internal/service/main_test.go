package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/events"
	"github.com/spec-kit/support-engine/internal/identity"
	"github.com/spec-kit/support-engine/internal/registry"
	"github.com/spec-kit/support-engine/internal/repository/memory"
	"github.com/spec-kit/support-engine/internal/sla"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store      *memory.Store
	clock      *fakeClock
	registry   *registry.Registry
	assignment *AssignmentService
	lifecycle  *TicketService
	breaks     *BreakService
	kpis       *KPIService
	dispatcher events.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureAt(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
}

func newFixtureAt(t *testing.T, start time.Time) *fixture {
	t.Helper()

	clock := newFakeClock(start)
	store := memory.NewStoreWithClock(clock.Now)
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(logger)
	reg := registry.New(store.Agents(), store.Tickets(), logger)
	detector := sla.NewDetector(3*time.Minute, 0)

	assignment := NewAssignmentService(AssignmentDependencies{
		Registry:    reg,
		TicketRepo:  store.Tickets(),
		TransferLog: store.TransferLogs(),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Clock:       clock.Now,
	})
	lifecycle := NewTicketService(TicketDependencies{
		TicketRepo:   store.Tickets(),
		MessageRepo:  store.Messages(),
		CustomerRepo: store.Customers(),
		StateLog:     store.StateLogs(),
		Satisfaction: store.Satisfaction(),
		Registry:     reg,
		Assignment:   assignment,
		Detector:     detector,
		Allocator:    identity.NewLocalAllocator(),
		Dispatcher:   dispatcher,
		Logger:       logger,
		Clock:        clock.Now,
	})
	breaks := NewBreakService(BreakDependencies{
		Registry:    reg,
		SessionRepo: store.BreakSessions(),
		Assignment:  assignment,
		ActivityLog: store.ActivityLogs(),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Clock:       clock.Now,
	})
	kpis := NewKPIService(KPIDependencies{
		TicketRepo:   store.Tickets(),
		MessageRepo:  store.Messages(),
		SessionRepo:  store.BreakSessions(),
		Satisfaction: store.Satisfaction(),
		KPIRepo:      store.KPIs(),
		AgentRepo:    store.Agents(),
		Logger:       logger,
		Clock:        clock.Now,
	})
	kpis.SubscribeTo(dispatcher)

	return &fixture{
		store:      store,
		clock:      clock,
		registry:   reg,
		assignment: assignment,
		lifecycle:  lifecycle,
		breaks:     breaks,
		kpis:       kpis,
		dispatcher: dispatcher,
	}
}

func (f *fixture) addAgent(t *testing.T, name string, capacity int) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{
		Name:        name,
		Email:       name + "@example.test",
		Role:        domain.RoleAgent,
		MaxCapacity: capacity,
		Online:      true,
		Status:      domain.AgentStatusAvailable,
		Active:      true,
	}
	if err := f.store.Agents().Create(context.Background(), agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return agent
}

func (f *fixture) openTicket(t *testing.T, waID string) *domain.Ticket {
	t.Helper()
	ticket, _, err := f.lifecycle.CreateTicket(context.Background(), TicketCreateInput{
		CustomerWaID: waID,
		CustomerName: "Customer " + waID,
		PhoneNumber:  "+100" + waID,
		Body:         "hello",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}
