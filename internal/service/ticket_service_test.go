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

func TestCreateTicketAllocatesNumberAndCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "alpha", 5)

	ticket := f.openTicket(t, "wa-100")

	assert.Equal(t, "TKT-20250602-0001", ticket.Number)
	assert.Equal(t, 1, ticket.MessagesCount)
	require.NotNil(t, ticket.LastCustomerMessageAt)

	customer, err := f.store.Customers().GetByWaID(ctx, "wa-100")
	require.NoError(t, err)
	assert.Equal(t, 1, customer.TotalTickets)

	second := f.openTicket(t, "wa-100")
	assert.Equal(t, "TKT-20250602-0002", second.Number)
	customer, err = f.store.Customers().GetByWaID(ctx, "wa-100")
	require.NoError(t, err)
	assert.Equal(t, 2, customer.TotalTickets)
}

func TestFirstAgentReplyStampsResponseTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(90 * time.Second)
	updated, err := f.lifecycle.RecordMessage(ctx, ticket.ID, MessageInput{
		SenderRole: domain.SenderAgent,
		SenderID:   &agent.ID,
		Body:       "how can I help?",
	})
	require.NoError(t, err)

	require.NotNil(t, updated.FirstResponseAt)
	require.NotNil(t, updated.ResponseTimeSeconds)
	assert.Equal(t, 90, *updated.ResponseTimeSeconds)
	assert.Equal(t, 2, updated.MessagesCount)

	// A later reply must not move the first-response stamp.
	f.clock.Advance(time.Minute)
	again, err := f.lifecycle.RecordMessage(ctx, ticket.ID, MessageInput{
		SenderRole: domain.SenderAgent,
		SenderID:   &agent.ID,
		Body:       "still there?",
	})
	require.NoError(t, err)
	assert.Equal(t, 90, *again.ResponseTimeSeconds)
}

func TestDelayFlagsAfterThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	// Just inside the 3 minute threshold: not delayed yet.
	f.clock.Advance(3 * time.Minute)
	evaluated, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)
	assert.False(t, evaluated.IsDelayed)
	assert.Equal(t, domain.TicketStatusOpen, evaluated.EffectiveStatus())

	f.clock.Advance(time.Minute)
	evaluated, err = f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, evaluated.IsDelayed)
	assert.Equal(t, domain.TicketStatusDelayed, evaluated.EffectiveStatus())
	assert.Equal(t, domain.TicketStatusOpen, evaluated.Status, "stored status stays open")
	assert.Equal(t, 1, evaluated.DelayCount)

	logs, err := f.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, domain.TicketStatusOpen, last.OldState)
	assert.Equal(t, domain.TicketStatusDelayed, last.NewState)
	assert.Equal(t, "response threshold exceeded", last.Reason)
}

func TestDelayEvaluationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(4 * time.Minute)
	for i := 0; i < 3; i++ {
		_, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
		require.NoError(t, err)
	}

	evaluated, err := f.lifecycle.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, evaluated.DelayCount, "repeated evaluation must not double count")

	logs, err := f.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)
	delayed := 0
	for _, entry := range logs {
		if entry.NewState == domain.TicketStatusDelayed {
			delayed++
		}
	}
	assert.Equal(t, 1, delayed, "repeated evaluation must not duplicate log rows")
}

func TestCustomerFollowUpFlagsBreachedWindowOnArrival(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(4 * time.Minute)
	updated, err := f.lifecycle.RecordMessage(ctx, ticket.ID, MessageInput{
		SenderRole: domain.SenderCustomer,
		Body:       "anyone there?",
	})
	require.NoError(t, err)

	assert.True(t, updated.IsDelayed, "breach is flagged when the follow-up arrives")
	assert.Equal(t, 1, updated.DelayCount)
	assert.Equal(t, f.clock.Now(), *updated.LastCustomerMessageAt)
}

func TestCustomerFollowUpDoesNotRecoverDelayedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(4 * time.Minute)
	_, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.lifecycle.RecordMessage(ctx, ticket.ID, MessageInput{
		SenderRole: domain.SenderCustomer,
		Body:       "hello?",
	})
	require.NoError(t, err)

	evaluated, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, evaluated.IsDelayed, "only an agent reply recovers the ticket")
	assert.Equal(t, 1, evaluated.DelayCount)
}

func TestAgentReplyRecoversDelayedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(4 * time.Minute)
	_, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	recovered, err := f.lifecycle.RecordMessage(ctx, ticket.ID, MessageInput{
		SenderRole: domain.SenderAgent,
		SenderID:   &agent.ID,
		Body:       "sorry for the wait",
	})
	require.NoError(t, err)

	assert.False(t, recovered.IsDelayed)
	assert.Nil(t, recovered.DelayStartedAt)
	assert.Equal(t, 2, recovered.TotalDelayMinutes)
	assert.Equal(t, domain.TicketStatusOpen, recovered.EffectiveStatus())

	logs, err := f.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, domain.TicketStatusDelayed, last.OldState)
	assert.Equal(t, domain.TicketStatusOpen, last.NewState)
	assert.Equal(t, "agent responded", last.Reason)
}

func TestCloseReleasesSlotAndStampsHandlingTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(10 * time.Minute)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}
	closed, err := f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "resolved")
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.HandlingTimeSeconds)
	assert.Equal(t, 600, *closed.HandlingTimeSeconds)
	assert.Equal(t, "resolved", closed.ClosureReason)
	require.NotNil(t, closed.ClosedByID)
	assert.Equal(t, agent.ID, *closed.ClosedByID)

	agentNow, err := f.registry.Get(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, agentNow.ActiveTickets)
}

func TestCloseDelayedTicketFinalizesDelayWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	f.clock.Advance(4 * time.Minute)
	_, err := f.lifecycle.EvaluateDelay(ctx, ticket.ID)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Minute)
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}
	closed, err := f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "gave up")
	require.NoError(t, err)

	assert.False(t, closed.IsDelayed)
	assert.Equal(t, 3, closed.TotalDelayMinutes)

	logs, err := f.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, domain.TicketStatusDelayed, last.OldState, "closure records the effective state")
	assert.Equal(t, domain.TicketStatusClosed, last.NewState)
}

func TestDoubleCloseRejectedWithoutTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	_, err := f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "resolved")
	require.NoError(t, err)

	before, err := f.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "again")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	after, err := f.lifecycle.History(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "rejected close must not append a log row")

	agentNow, err := f.registry.Get(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, agentNow.ActiveTickets, "slot released exactly once")
}

func TestClosedTicketRejectsMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")
	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}

	_, err := f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "resolved")
	require.NoError(t, err)

	_, err = f.lifecycle.RecordMessage(ctx, ticket.ID, MessageInput{
		SenderRole: domain.SenderCustomer,
		Body:       "hello again",
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestRateTicketOnlyAfterClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	_, err := f.lifecycle.RateTicket(ctx, ticket.ID, 5, "great")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	actor := domain.Actor{ID: agent.ID, Role: domain.RoleAgent}
	_, err = f.lifecycle.CloseTicket(ctx, ticket.ID, actor, "resolved")
	require.NoError(t, err)

	record, err := f.lifecycle.RateTicket(ctx, ticket.ID, 4, "good")
	require.NoError(t, err)
	assert.Equal(t, 4, record.Rating)
	require.NotNil(t, record.AgentID)
	assert.Equal(t, agent.ID, *record.AgentID)

	_, err = f.lifecycle.RateTicket(ctx, ticket.ID, 9, "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestSelectCategoryStampsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "alpha", 5)
	ticket := f.openTicket(t, "wa-1")

	updated, err := f.lifecycle.SelectCategory(ctx, ticket.ID, domain.CategoryComplaint)
	require.NoError(t, err)
	require.NotNil(t, updated.CategorySelectedAt)
	firstStamp := *updated.CategorySelectedAt

	f.clock.Advance(time.Minute)
	updated, err = f.lifecycle.SelectCategory(ctx, ticket.ID, domain.CategoryFollowUp)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryFollowUp, updated.Category)
	assert.Equal(t, firstStamp, *updated.CategorySelectedAt)

	_, err = f.lifecycle.SelectCategory(ctx, ticket.ID, domain.TicketCategory("BOGUS"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}
