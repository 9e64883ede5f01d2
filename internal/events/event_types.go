package events

import (
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket_created"
	EventTicketAssigned    EventType = "ticket_assigned"
	EventTicketTransferred EventType = "ticket_transferred"
	EventTicketDelayed     EventType = "ticket_delayed"
	EventTicketRecovered   EventType = "ticket_recovered"
	EventTicketClosed      EventType = "ticket_closed"
	EventAgentBreakStarted EventType = "agent_break_started"
	EventAgentBreakEnded   EventType = "agent_break_ended"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number     string                `json:"number"`
	CustomerID string                `json:"customer_id"`
	Priority   domain.TicketPriority `json:"priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AgentID string `json:"agent_id"`
}

// TicketTransferredPayload payload.
type TicketTransferredPayload struct {
	FromAgentID *string `json:"from_agent_id,omitempty"`
	ToAgentID   string  `json:"to_agent_id"`
	Reason      string  `json:"reason,omitempty"`
}

// TicketDelayedPayload payload.
type TicketDelayedPayload struct {
	WaitingSeconds int `json:"waiting_seconds"`
}

// TicketRecoveredPayload payload.
type TicketRecoveredPayload struct {
	DelayMinutes int `json:"delay_minutes"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	ClosedByID *string `json:"closed_by_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// AgentBreakPayload payload shared by break start/end events.
type AgentBreakPayload struct {
	SessionID       string `json:"session_id"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}
