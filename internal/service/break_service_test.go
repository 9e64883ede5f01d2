package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-engine/internal/domain"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

func TestStartBreakDrainsTicketsToColleague(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resting := f.addAgent(t, "resting", 5)
	backup := f.addAgent(t, "backup", 5)

	_, err := f.registry.SetOnline(ctx, backup.ID, false)
	require.NoError(t, err)
	t1 := f.openTicket(t, "wa-1")
	t2 := f.openTicket(t, "wa-2")
	require.Equal(t, resting.ID, *t1.CurrentAgentID)
	require.Equal(t, resting.ID, *t2.CurrentAgentID)
	_, err = f.registry.SetOnline(ctx, backup.ID, true)
	require.NoError(t, err)

	actor := domain.Actor{ID: resting.ID, Role: domain.RoleAgent}
	result, err := f.breaks.StartBreak(ctx, resting.ID, actor)
	require.NoError(t, err)

	assert.True(t, result.Agent.OnBreak)
	assert.Equal(t, domain.AgentStatusOnBreak, result.Agent.Status)
	require.NotNil(t, result.Drained)
	assert.Equal(t, 2, result.Drained.Moved)

	for _, id := range []string{t1.ID, t2.ID} {
		ticket, err := f.lifecycle.GetTicket(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, ticket.CurrentAgentID)
		assert.Equal(t, backup.ID, *ticket.CurrentAgentID)

		logs, err := f.store.TransferLogs().ListByTicket(ctx, id)
		require.NoError(t, err)
		last := logs[len(logs)-1]
		assert.Equal(t, "break started", last.Reason)
		assert.Nil(t, last.ActorID, "break drain is system-triggered")
	}

	session, err := f.store.BreakSessions().GetOpenByAgent(ctx, resting.ID)
	require.NoError(t, err)
	assert.True(t, session.Open())
}

func TestDoubleStartBreakRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "resting", 5)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	_, err := f.breaks.StartBreak(ctx, agent.ID, actor)
	require.NoError(t, err)

	_, err = f.breaks.StartBreak(ctx, agent.ID, actor)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyOnBreak))
}

func TestEndBreakClosesSessionAndAccumulatesMinutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "resting", 5)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	_, err := f.breaks.StartBreak(ctx, agent.ID, actor)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	result, err := f.breaks.EndBreak(ctx, agent.ID, actor)
	require.NoError(t, err)

	assert.False(t, result.Agent.OnBreak)
	assert.Equal(t, domain.AgentStatusAvailable, result.Agent.Status)
	assert.Equal(t, 15, result.Agent.BreakMinutesToday)

	require.NotNil(t, result.Session)
	require.NotNil(t, result.Session.EndTime)
	require.NotNil(t, result.Session.DurationSeconds)
	assert.Equal(t, 900, *result.Session.DurationSeconds)

	_, err = f.store.BreakSessions().GetOpenByAgent(ctx, agent.ID)
	require.Error(t, err, "no open session may remain")
}

func TestEndBreakWithoutBreakRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "working", 5)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	_, err := f.breaks.EndBreak(ctx, agent.ID, actor)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotOnBreak))
}

func TestAgentOnBreakReceivesNoAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resting := f.addAgent(t, "resting", 5)
	actor := domain.Actor{ID: resting.ID, Role: domain.RoleAgent}

	_, err := f.breaks.StartBreak(ctx, resting.ID, actor)
	require.NoError(t, err)

	ticket := f.openTicket(t, "wa-1")
	assert.Nil(t, ticket.CurrentAgentID, "agent on break is out of rotation")

	f.clock.Advance(5 * time.Minute)
	_, err = f.breaks.EndBreak(ctx, resting.ID, actor)
	require.NoError(t, err)

	assigned, err := f.assignment.AssignOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, assigned)
}

func TestLogoutDrainsAndGoesOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	leaving := f.addAgent(t, "leaving", 5)
	backup := f.addAgent(t, "backup", 5)

	_, err := f.registry.SetOnline(ctx, backup.ID, false)
	require.NoError(t, err)
	ticket := f.openTicket(t, "wa-1")
	require.Equal(t, leaving.ID, *ticket.CurrentAgentID)
	_, err = f.registry.SetOnline(ctx, backup.ID, true)
	require.NoError(t, err)

	actor := domain.Actor{ID: leaving.ID, Role: domain.RoleAgent}
	result, err := f.breaks.Logout(ctx, leaving.ID, actor)
	require.NoError(t, err)

	assert.False(t, result.Agent.Online)
	assert.Equal(t, domain.AgentStatusOffline, result.Agent.Status)
	assert.Equal(t, 0, result.Agent.ActiveTickets)
	require.NotNil(t, result.Drained)
	assert.Equal(t, 1, result.Drained.Moved)

	moved, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.ID, *moved.CurrentAgentID)

	logs, err := f.store.TransferLogs().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent logged out", logs[len(logs)-1].Reason)
}
