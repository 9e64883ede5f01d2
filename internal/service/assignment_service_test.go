package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-engine/internal/domain"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

func TestAssignPicksLeastLoadedAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	busy := f.addAgent(t, "busy", 5)
	idle := f.addAgent(t, "idle", 5)

	_, err := f.registry.ReserveSlot(ctx, busy.ID)
	require.NoError(t, err)

	ticket := f.openTicket(t, "wa-100")
	require.NotNil(t, ticket.CurrentAgentID)
	assert.Equal(t, idle.ID, *ticket.CurrentAgentID)
	assert.Equal(t, idle.ID, *ticket.AssignedAgentID)
}

func TestAssignRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "alpha", 2)

	first := f.openTicket(t, "wa-1")
	second := f.openTicket(t, "wa-2")
	third := f.openTicket(t, "wa-3")

	require.NotNil(t, first.CurrentAgentID)
	require.NotNil(t, second.CurrentAgentID)
	assert.Nil(t, third.CurrentAgentID, "third ticket must stay queued when the only agent is full")
	assert.Equal(t, domain.TicketStatusOpen, third.Status)
}

func TestAssignQueuedWhenNobodyAvailable(t *testing.T) {
	f := newFixture(t)

	ticket := f.openTicket(t, "wa-1")

	assert.Nil(t, ticket.CurrentAgentID)
	assert.Nil(t, ticket.AssignedAgentID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
}

func TestOrphanRetryAfterAgentAppears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.openTicket(t, "wa-1")
	require.Nil(t, ticket.CurrentAgentID)

	agent := f.addAgent(t, "late", 5)
	assigned, err := f.assignment.AssignOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, assigned)

	reloaded, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CurrentAgentID)
	assert.Equal(t, agent.ID, *reloaded.CurrentAgentID)
}

func TestTransferToFullAgentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holder := f.addAgent(t, "holder", 5)
	full := f.addAgent(t, "full", 1)

	_, err := f.registry.ReserveSlot(ctx, full.ID)
	require.NoError(t, err)

	ticket := f.openTicket(t, "wa-1")
	require.Equal(t, holder.ID, *ticket.CurrentAgentID)

	actor := domain.Actor{ID: holder.ID, Role: domain.RoleAgent}
	_, err = f.assignment.Transfer(ctx, ticket, full.ID, actor, "escalation")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCapacityExceeded))

	holderNow, err := f.registry.Get(ctx, holder.ID)
	require.NoError(t, err)
	fullNow, err := f.registry.Get(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, holderNow.ActiveTickets, "failed transfer must not change the source count")
	assert.Equal(t, 1, fullNow.ActiveTickets, "failed transfer must not change the target count")

	reloaded, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, holder.ID, *reloaded.CurrentAgentID)
}

func TestTransferMovesCurrentNotAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.addAgent(t, "first", 5)
	ticket := f.openTicket(t, "wa-1")
	require.Equal(t, first.ID, *ticket.AssignedAgentID)
	second := f.addAgent(t, "second", 5)

	actor := domain.Actor{ID: first.ID, Role: domain.RoleAgent}
	result, err := f.assignment.Transfer(ctx, ticket, second.ID, actor, "handover")
	require.NoError(t, err)

	assert.Equal(t, second.ID, *result.Ticket.CurrentAgentID)
	assert.Equal(t, first.ID, *result.Ticket.AssignedAgentID, "first assignee is immutable")

	logs, err := f.store.TransferLogs().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, second.ID, logs[1].ToAgentID)
	require.NotNil(t, logs[1].FromAgentID)
	assert.Equal(t, first.ID, *logs[1].FromAgentID)
	assert.Equal(t, "handover", logs[1].Reason)
}

func TestTransferToSelfRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "solo", 5)

	ticket := f.openTicket(t, "wa-1")
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	_, err := f.assignment.Transfer(ctx, ticket, agent.ID, actor, "noop")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestRedistributeMovesAllOpenTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leaving := f.addAgent(t, "leaving", 5)
	staying := f.addAgent(t, "staying", 5)

	// Force both tickets onto the leaving agent by keeping the other
	// agent out of rotation during creation.
	_, err := f.registry.SetOnline(ctx, staying.ID, false)
	require.NoError(t, err)
	t1 := f.openTicket(t, "wa-1")
	t2 := f.openTicket(t, "wa-2")
	require.Equal(t, leaving.ID, *t1.CurrentAgentID)
	require.Equal(t, leaving.ID, *t2.CurrentAgentID)
	_, err = f.registry.SetOnline(ctx, staying.ID, true)
	require.NoError(t, err)

	report, err := f.assignment.Redistribute(ctx, leaving.ID, "agent logged out")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Moved)
	assert.Equal(t, 0, report.Unplaced)

	for _, id := range []string{t1.ID, t2.ID} {
		ticket, err := f.lifecycle.GetTicket(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, ticket.CurrentAgentID)
		assert.Equal(t, staying.ID, *ticket.CurrentAgentID)
	}

	leavingNow, err := f.registry.Get(ctx, leaving.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, leavingNow.ActiveTickets)
	stayingNow, err := f.registry.Get(ctx, staying.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stayingNow.ActiveTickets)
}

func TestRedistributeLeavesTicketWithSourceWhenNoTaker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leaving := f.addAgent(t, "leaving", 5)

	ticket := f.openTicket(t, "wa-1")
	require.Equal(t, leaving.ID, *ticket.CurrentAgentID)

	report, err := f.assignment.Redistribute(ctx, leaving.ID, "break started")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Moved)
	assert.Equal(t, 1, report.Unplaced)

	reloaded, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CurrentAgentID, "unplaced tickets stay with the source agent")
	assert.Equal(t, leaving.ID, *reloaded.CurrentAgentID)
	assert.Equal(t, leaving.ID, *reloaded.AssignedAgentID)
}

func TestOrphanRetryMovesTicketsHeldOffRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resting := f.addAgent(t, "resting", 5)
	actor := domain.Actor{ID: resting.ID, Role: domain.RoleAgent}

	ticket := f.openTicket(t, "wa-1")
	result, err := f.breaks.StartBreak(ctx, resting.ID, actor)
	require.NoError(t, err)
	require.NotNil(t, result.Drained)
	assert.Equal(t, 1, result.Drained.Unplaced)

	held, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, held.CurrentAgentID)
	assert.Equal(t, resting.ID, *held.CurrentAgentID)

	backup := f.addAgent(t, "backup", 5)
	moved, err := f.assignment.AssignOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	reloaded, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.ID, *reloaded.CurrentAgentID)

	restingNow, err := f.registry.Get(ctx, resting.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, restingNow.ActiveTickets, "retry releases the off-rotation holder's slot")
}
