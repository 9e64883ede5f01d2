// Package sla decides whether a ticket has breached its response
// threshold. The decision is pure: it reads a ticket snapshot and a
// clock value and returns a verdict, leaving persistence to the caller.
package sla

import (
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

// Verdict is the outcome of a single delay evaluation.
type Verdict struct {
	Delayed bool
	// Waiting is how long the customer has been waiting for a reply.
	// Zero when the ticket is not waiting on the agent.
	Waiting time.Duration
}

// Detector evaluates the response threshold against ticket snapshots.
type Detector struct {
	threshold time.Duration
	grace     time.Duration
}

// NewDetector builds a detector with the configured response threshold
// and the pre-classification grace window. A zero grace disables it.
func NewDetector(threshold, grace time.Duration) *Detector {
	return &Detector{threshold: threshold, grace: grace}
}

// Threshold returns the configured response threshold.
func (d *Detector) Threshold() time.Duration {
	return d.threshold
}

// Evaluate returns the delay verdict for a ticket at the given instant.
//
// A ticket is never delayed when it is closed, when no customer message
// has arrived yet, or when the agent has already answered the latest
// customer message. Tickets still inside the pre-classification grace
// window are also exempt. Otherwise the ticket is delayed exactly when
// the wait since the last customer message exceeds the threshold.
func (d *Detector) Evaluate(ticket *domain.Ticket, now time.Time) Verdict {
	if ticket.Closed() {
		return Verdict{}
	}
	if ticket.LastCustomerMessageAt == nil || ticket.Answered() {
		return Verdict{}
	}
	if d.grace > 0 && ticket.CategorySelectedAt == nil && now.Sub(ticket.CreatedAt) < d.grace {
		return Verdict{}
	}

	waiting := now.Sub(*ticket.LastCustomerMessageAt)
	return Verdict{
		Delayed: waiting > d.threshold,
		Waiting: waiting,
	}
}
