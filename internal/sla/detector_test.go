package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-engine/internal/domain"
)

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func waitingTicket(lastCustomer time.Time) *domain.Ticket {
	return &domain.Ticket{
		Status:                domain.TicketStatusOpen,
		CreatedAt:             lastCustomer,
		LastCustomerMessageAt: &lastCustomer,
	}
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	d := NewDetector(3*time.Minute, 0)
	ticket := waitingTicket(base)

	exactly := d.Evaluate(ticket, base.Add(3*time.Minute))
	assert.False(t, exactly.Delayed, "a wait equal to the threshold is still on time")
	assert.Equal(t, 3*time.Minute, exactly.Waiting)

	over := d.Evaluate(ticket, base.Add(3*time.Minute+time.Second))
	assert.True(t, over.Delayed)
	assert.Equal(t, 3*time.Minute+time.Second, over.Waiting)
}

func TestEvaluateClosedTicketNeverDelayed(t *testing.T) {
	d := NewDetector(3*time.Minute, 0)
	ticket := waitingTicket(base)
	ticket.Status = domain.TicketStatusClosed

	verdict := d.Evaluate(ticket, base.Add(time.Hour))
	assert.False(t, verdict.Delayed)
	assert.Zero(t, verdict.Waiting)
}

func TestEvaluateNoCustomerMessageYet(t *testing.T) {
	d := NewDetector(3*time.Minute, 0)
	ticket := &domain.Ticket{
		Status:    domain.TicketStatusOpen,
		CreatedAt: base,
	}

	verdict := d.Evaluate(ticket, base.Add(time.Hour))
	assert.False(t, verdict.Delayed)
}

func TestEvaluateAgentAlreadyAnswered(t *testing.T) {
	d := NewDetector(3*time.Minute, 0)
	ticket := waitingTicket(base)
	answered := base.Add(time.Minute)
	ticket.LastAgentMessageAt = &answered

	verdict := d.Evaluate(ticket, base.Add(time.Hour))
	assert.False(t, verdict.Delayed)
	assert.Zero(t, verdict.Waiting)

	// A reply at the exact instant of the customer message counts too.
	sameInstant := waitingTicket(base)
	sameInstant.LastAgentMessageAt = &base
	verdict = d.Evaluate(sameInstant, base.Add(time.Hour))
	assert.False(t, verdict.Delayed)
}

func TestEvaluateCustomerFollowUpReopensTheClock(t *testing.T) {
	d := NewDetector(3*time.Minute, 0)
	ticket := waitingTicket(base)
	answered := base.Add(time.Minute)
	followUp := base.Add(2 * time.Minute)
	ticket.LastAgentMessageAt = &answered
	ticket.LastCustomerMessageAt = &followUp

	verdict := d.Evaluate(ticket, followUp.Add(4*time.Minute))
	assert.True(t, verdict.Delayed)
	assert.Equal(t, 4*time.Minute, verdict.Waiting)
}

func TestEvaluateGraceWindowBeforeClassification(t *testing.T) {
	d := NewDetector(3*time.Minute, 10*time.Minute)
	ticket := waitingTicket(base)

	inside := d.Evaluate(ticket, base.Add(5*time.Minute))
	assert.False(t, inside.Delayed, "unclassified tickets get the grace window")

	after := d.Evaluate(ticket, base.Add(11*time.Minute))
	assert.True(t, after.Delayed)

	classified := waitingTicket(base)
	selectedAt := base.Add(time.Minute)
	classified.CategorySelectedAt = &selectedAt
	verdict := d.Evaluate(classified, base.Add(5*time.Minute))
	assert.True(t, verdict.Delayed, "classification ends the grace window early")
}
