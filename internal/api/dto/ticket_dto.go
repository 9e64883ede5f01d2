package dto

import (
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

// CreateTicketRequest opens a conversation for a customer.
type CreateTicketRequest struct {
	CustomerWaID string                `json:"customer_wa_id"`
	CustomerName string                `json:"customer_name"`
	PhoneNumber  string                `json:"phone_number"`
	Body         string                `json:"body"`
	Priority     domain.TicketPriority `json:"priority"`
}

// AddMessageRequest appends a message to a ticket.
type AddMessageRequest struct {
	SenderRole domain.SenderRole `json:"sender_role"`
	SenderID   *string           `json:"sender_id"`
	Body       string            `json:"body"`
}

// SelectCategoryRequest records the customer's menu choice.
type SelectCategoryRequest struct {
	Category domain.TicketCategory `json:"category"`
}

// TransferRequest moves a ticket to another agent.
type TransferRequest struct {
	ToAgentID string `json:"to_agent_id"`
	Reason    string `json:"reason"`
}

// CloseTicketRequest closes a ticket.
type CloseTicketRequest struct {
	Reason string `json:"reason"`
}

// RateTicketRequest records customer satisfaction.
type RateTicketRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// TicketSummary is the wire shape of a ticket.
type TicketSummary struct {
	ID                string                `json:"id"`
	Number            string                `json:"number"`
	CustomerID        string                `json:"customer_id"`
	AssignedAgentID   *string               `json:"assigned_agent_id,omitempty"`
	CurrentAgentID    *string               `json:"current_agent_id,omitempty"`
	Status            domain.TicketStatus   `json:"status"`
	Category          domain.TicketCategory `json:"category"`
	Priority          domain.TicketPriority `json:"priority"`
	IsDelayed         bool                  `json:"is_delayed"`
	TotalDelayMinutes int                   `json:"total_delay_minutes"`
	DelayCount        int                   `json:"delay_count"`
	MessagesCount     int                   `json:"messages_count"`
	CreatedAt         time.Time             `json:"created_at"`
	FirstResponseAt   *time.Time            `json:"first_response_at,omitempty"`
	ClosedAt          *time.Time            `json:"closed_at,omitempty"`
	ClosureReason     string                `json:"closure_reason,omitempty"`
}

// TicketSummaryFrom maps a ticket onto its wire shape. Status reports
// the delayed overlay.
func TicketSummaryFrom(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                ticket.ID,
		Number:            ticket.Number,
		CustomerID:        ticket.CustomerID,
		AssignedAgentID:   ticket.AssignedAgentID,
		CurrentAgentID:    ticket.CurrentAgentID,
		Status:            ticket.EffectiveStatus(),
		Category:          ticket.Category,
		Priority:          ticket.Priority,
		IsDelayed:         ticket.IsDelayed,
		TotalDelayMinutes: ticket.TotalDelayMinutes,
		DelayCount:        ticket.DelayCount,
		MessagesCount:     ticket.MessagesCount,
		CreatedAt:         ticket.CreatedAt,
		FirstResponseAt:   ticket.FirstResponseAt,
		ClosedAt:          ticket.ClosedAt,
		ClosureReason:     ticket.ClosureReason,
	}
}

// MessageView is the wire shape of a message.
type MessageView struct {
	ID        string                  `json:"id"`
	Role      domain.SenderRole       `json:"role"`
	SenderID  *string                 `json:"sender_id,omitempty"`
	Direction domain.MessageDirection `json:"direction"`
	Body      string                  `json:"body"`
	CreatedAt time.Time               `json:"created_at"`
}

// MessageViewFrom maps a message onto its wire shape.
func MessageViewFrom(msg *domain.Message) MessageView {
	return MessageView{
		ID:        msg.ID,
		Role:      msg.Role,
		SenderID:  msg.SenderID,
		Direction: msg.Direction,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
}

// StateLogView is the wire shape of one status transition.
type StateLogView struct {
	OldState  domain.TicketStatus `json:"old_state"`
	NewState  domain.TicketStatus `json:"new_state"`
	ActorID   *string             `json:"actor_id,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// StateLogViewFrom maps a transition onto its wire shape.
func StateLogViewFrom(entry *domain.TicketStateLog) StateLogView {
	return StateLogView{
		OldState:  entry.OldState,
		NewState:  entry.NewState,
		ActorID:   entry.ActorID,
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt,
	}
}
