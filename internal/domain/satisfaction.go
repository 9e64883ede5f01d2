package domain

import "time"

// CustomerSatisfaction is a 1-5 rating a customer left on a ticket.
type CustomerSatisfaction struct {
	ID        string
	TicketID  string
	AgentID   *string
	Rating    int
	Comment   string
	CreatedAt time.Time
}
