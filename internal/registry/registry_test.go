package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/repository/memory"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return New(store.Agents(), store.Tickets(), zap.NewNop()), store
}

func seedAgent(t *testing.T, store *memory.Store, name string, capacity int) *domain.Agent {
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
	require.NoError(t, store.Agents().Create(context.Background(), agent))
	return agent
}

func TestReserveSlotNeverOversubscribes(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	agent := seedAgent(t, store, "alpha", 10)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.ReserveSlot(ctx, agent.ID); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted, "exactly capacity reservations may win")

	reloaded, err := reg.Get(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.ActiveTickets)
	assert.Equal(t, domain.AgentStatusBusy, reloaded.Status)
}

func TestReserveSlotRejectsIneligibleAgent(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	offline := seedAgent(t, store, "offline", 5)
	_, err := reg.SetOnline(ctx, offline.ID, false)
	require.NoError(t, err)
	_, err = reg.ReserveSlot(ctx, offline.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCapacityExceeded))

	resting := seedAgent(t, store, "resting", 5)
	_, _, err = reg.SetBreak(ctx, resting.ID, true, time.Now())
	require.NoError(t, err)
	_, err = reg.ReserveSlot(ctx, resting.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCapacityExceeded))
}

func TestReleaseSlotFlooredAtZeroAndRestoresStatus(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	agent := seedAgent(t, store, "alpha", 1)

	reserved, err := reg.ReserveSlot(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusBusy, reserved.Status)

	released, err := reg.ReleaseSlot(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, released.ActiveTickets)
	assert.Equal(t, domain.AgentStatusAvailable, released.Status)

	again, err := reg.ReleaseSlot(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.ActiveTickets, "release never goes negative")
}

func TestListAvailableOrdersByLoad(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	heavy := seedAgent(t, store, "heavy", 5)
	light := seedAgent(t, store, "light", 5)
	full := seedAgent(t, store, "full", 1)
	resting := seedAgent(t, store, "resting", 5)

	for i := 0; i < 3; i++ {
		_, err := reg.ReserveSlot(ctx, heavy.ID)
		require.NoError(t, err)
	}
	_, err := reg.ReserveSlot(ctx, full.ID)
	require.NoError(t, err)
	_, _, err = reg.SetBreak(ctx, resting.ID, true, time.Now())
	require.NoError(t, err)

	available, err := reg.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, light.ID, available[0].ID)
	assert.Equal(t, heavy.ID, available[1].ID)
}

func TestSetBreakRoundTripAccumulatesMinutes(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	agent := seedAgent(t, store, "alpha", 5)

	start := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	onBreak, elapsed, err := reg.SetBreak(ctx, agent.ID, true, start)
	require.NoError(t, err)
	assert.Zero(t, elapsed)
	assert.True(t, onBreak.OnBreak)
	assert.Equal(t, 0, onBreak.ActiveTickets)

	back, elapsed, err := reg.SetBreak(ctx, agent.ID, false, start.Add(12*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 12*time.Minute, elapsed)
	assert.False(t, back.OnBreak)
	assert.Nil(t, back.BreakStartedAt)
	assert.Equal(t, 12, back.BreakMinutesToday)
	assert.Equal(t, domain.AgentStatusAvailable, back.Status)
}

func TestSetOnlineFalseClearsState(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	agent := seedAgent(t, store, "alpha", 5)

	_, err := reg.ReserveSlot(ctx, agent.ID)
	require.NoError(t, err)
	_, _, err = reg.SetBreak(ctx, agent.ID, true, time.Now())
	require.NoError(t, err)

	offline, err := reg.SetOnline(ctx, agent.ID, false)
	require.NoError(t, err)
	assert.False(t, offline.Online)
	assert.False(t, offline.OnBreak)
	assert.Equal(t, 0, offline.ActiveTickets)
	assert.Equal(t, domain.AgentStatusOffline, offline.Status)
}

func TestRedundantLoginKeepsBusyStatus(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	agent := seedAgent(t, store, "alpha", 1)

	_, err := reg.ReserveSlot(ctx, agent.ID)
	require.NoError(t, err)

	online, err := reg.SetOnline(ctx, agent.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusBusy, online.Status, "status derives from load, not from the toggle")
	assert.Equal(t, 1, online.ActiveTickets)
}

func TestReconcileRecountsFromOpenTickets(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	agent := seedAgent(t, store, "alpha", 5)

	for i := 0; i < 3; i++ {
		_, err := reg.ReserveSlot(ctx, agent.ID)
		require.NoError(t, err)
	}

	agentID := agent.ID
	ticket := &domain.Ticket{
		Number:          "TKT-20250602-0001",
		CustomerID:      "customer-1",
		AssignedAgentID: &agentID,
		CurrentAgentID:  &agentID,
		Status:          domain.TicketStatusOpen,
		Category:        domain.CategoryGeneral,
		Priority:        domain.PriorityMedium,
	}
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	reconciled, err := reg.Reconcile(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled.ActiveTickets)
	assert.Equal(t, domain.AgentStatusAvailable, reconciled.Status)
}

func TestUnknownAgentReturnsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.ReserveSlot(ctx, "no-such-agent")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
