package domain

import "time"

// TicketStatus enumerates persisted lifecycle states.
// Delayed is an overlay on an open ticket, never a persisted exclusive
// state; see EffectiveStatus.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"

	// TicketStatusDelayed is reported by EffectiveStatus and recorded in
	// state logs; it is never stored in Ticket.Status.
	TicketStatusDelayed TicketStatus = "DELAYED"
)

// TicketCategory enumerates the customer menu choices.
type TicketCategory string

const (
	CategoryGeneral       TicketCategory = "GENERAL"
	CategoryComplaint     TicketCategory = "COMPLAINT"
	CategoryMedicineOrder TicketCategory = "MEDICINE_ORDER"
	CategoryConsultation  TicketCategory = "CONSULTATION"
	CategoryFollowUp      TicketCategory = "FOLLOW_UP"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for a customer conversation.
//
// AssignedAgentID is the first agent ever assigned and is immutable once
// set; CurrentAgentID moves with transfers. Both are nil only while no
// agent was ever available. Once closed no field may change.
type Ticket struct {
	ID              string
	Number          string
	CustomerID      string
	AssignedAgentID *string
	CurrentAgentID  *string

	Status   TicketStatus
	Category TicketCategory
	Priority TicketPriority

	// Delay bookkeeping. TotalDelayMinutes and DelayCount only grow.
	IsDelayed         bool
	DelayStartedAt    *time.Time
	TotalDelayMinutes int
	DelayCount        int

	CreatedAt             time.Time
	CategorySelectedAt    *time.Time
	FirstResponseAt       *time.Time
	LastMessageAt         *time.Time
	LastCustomerMessageAt *time.Time
	LastAgentMessageAt    *time.Time
	ClosedAt              *time.Time

	ResponseTimeSeconds *int
	HandlingTimeSeconds *int
	MessagesCount       int

	ClosedByID    *string
	ClosureReason string

	UpdatedAt time.Time
}

// EffectiveStatus reports the delayed overlay on open tickets.
func (t *Ticket) EffectiveStatus() TicketStatus {
	if t.Status == TicketStatusOpen && t.IsDelayed {
		return TicketStatusDelayed
	}
	return t.Status
}

// Closed reports whether the ticket reached its terminal state.
func (t *Ticket) Closed() bool {
	return t.Status == TicketStatusClosed
}

// Answered reports whether the agent has replied to the latest customer
// message.
func (t *Ticket) Answered() bool {
	if t.LastCustomerMessageAt == nil {
		return true
	}
	return t.LastAgentMessageAt != nil && !t.LastAgentMessageAt.Before(*t.LastCustomerMessageAt)
}
