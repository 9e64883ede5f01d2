package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-engine/internal/domain"
)

func TestRecomputeDailyBlendsAllComponents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	// One answered and closed ticket, one untouched.
	t1 := f.openTicket(t, "wa-1")
	f.clock.Advance(time.Minute)
	_, err := f.lifecycle.RecordMessage(ctx, t1.ID, MessageInput{
		SenderRole: domain.SenderAgent,
		SenderID:   &agent.ID,
		Body:       "on it",
	})
	require.NoError(t, err)
	_, err = f.lifecycle.CloseTicket(ctx, t1.ID, actor, "resolved")
	require.NoError(t, err)
	_, err = f.lifecycle.RateTicket(ctx, t1.ID, 4, "good")
	require.NoError(t, err)

	f.openTicket(t, "wa-2")

	// One 10 minute break.
	_, err = f.breaks.StartBreak(ctx, agent.ID, actor)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	_, err = f.breaks.EndBreak(ctx, agent.ID, actor)
	require.NoError(t, err)

	kpi, err := f.kpis.RecomputeDaily(ctx, agent.ID, f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, kpi.TotalTickets)
	assert.Equal(t, 1, kpi.ClosedTickets)
	assert.Equal(t, 60, kpi.AvgResponseSeconds)
	assert.Equal(t, 1, kpi.MessagesSent)
	assert.Equal(t, 2, kpi.MessagesReceived)
	assert.Equal(t, 0, kpi.DelayCount)
	assert.Equal(t, 600, kpi.BreakSeconds)
	assert.Equal(t, 1, kpi.BreakCount)
	assert.InDelta(t, 4.0, kpi.SatisfactionScore, 1e-9)
	assert.InDelta(t, 50.0, kpi.FirstResponseRate, 1e-9)
	assert.InDelta(t, 50.0, kpi.ResolutionRate, 1e-9)
	// (50 + 50 + 4*20) / 3
	assert.InDelta(t, 60.0, kpi.OverallScore, 1e-9)
}

func TestRecomputeDailyConvergesOnRerun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	ticket := f.openTicket(t, "wa-1")
	_, err := f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "resolved")
	require.NoError(t, err)

	first, err := f.kpis.RecomputeDaily(ctx, agent.ID, f.clock.Now())
	require.NoError(t, err)
	second, err := f.kpis.RecomputeDaily(ctx, agent.ID, f.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, first.TotalTickets, second.TotalTickets)
	assert.Equal(t, first.ClosedTickets, second.ClosedTickets)
	assert.InDelta(t, first.OverallScore, second.OverallScore, 1e-9)
}

func TestCloseTriggersDailyRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	ticket := f.openTicket(t, "wa-1")
	_, err := f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "resolved")
	require.NoError(t, err)

	kpi, err := f.kpis.Daily(ctx, agent.ID, f.clock.Now())
	require.NoError(t, err, "closure must roll the daily scorecard up")
	assert.Equal(t, 1, kpi.ClosedTickets)
}

func TestDelayedTicketCountsInDailyKPI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)

	ticket := f.openTicket(t, "wa-1")
	f.clock.Advance(4 * time.Minute)
	_, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)

	kpi, err := f.kpis.RecomputeDaily(ctx, agent.ID, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, kpi.DelayCount)
}

func TestRecomputeMonthlyRanksByOverallScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strong := f.addAgent(t, "strong", 5)
	weak := f.addAgent(t, "weak", 5)
	strongActor := domain.Actor{ID: strong.ID, Role: domain.RoleAgent}

	// Pin both tickets onto the strong agent, close them, leave the
	// weak agent with one open ticket.
	_, err := f.registry.SetOnline(ctx, weak.ID, false)
	require.NoError(t, err)
	t1 := f.openTicket(t, "wa-1")
	_, err = f.lifecycle.CloseTicket(ctx, t1.ID, strongActor, "resolved")
	require.NoError(t, err)
	_, err = f.registry.SetOnline(ctx, weak.ID, true)
	require.NoError(t, err)

	_, err = f.registry.SetOnline(ctx, strong.ID, false)
	require.NoError(t, err)
	f.openTicket(t, "wa-2")
	_, err = f.registry.SetOnline(ctx, strong.ID, true)
	require.NoError(t, err)

	rollups, err := f.kpis.RecomputeMonthly(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, rollups, 2)

	assert.Equal(t, strong.ID, rollups[0].AgentID)
	assert.Equal(t, 1, rollups[0].Rank)
	assert.Equal(t, weak.ID, rollups[1].AgentID)
	assert.Equal(t, 2, rollups[1].Rank)

	stored, err := f.kpis.Monthly(ctx, strong.ID, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rank)
	assert.Equal(t, 1, stored.ClosedTickets)
}
