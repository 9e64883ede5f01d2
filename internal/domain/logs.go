package domain

import "time"

// Actor identifies who performed an operation. A zero Actor means the
// transition was system-triggered (delay sweep, automatic assignment).
type Actor struct {
	ID   string
	Role AgentRole
}

// System reports whether the action had no human actor.
func (a Actor) System() bool {
	return a.ID == ""
}

// TicketStateLog is an append-only record of one status transition.
// Created exactly once per observed transition, never mutated.
type TicketStateLog struct {
	ID        string
	TicketID  string
	OldState  TicketStatus
	NewState  TicketStatus
	ActorID   *string
	Reason    string
	CreatedAt time.Time
}

// TicketTransferLog is an append-only record of one transfer, including
// system-triggered ones (break, logout).
type TicketTransferLog struct {
	ID          string
	TicketID    string
	FromAgentID *string
	ToAgentID   string
	ActorID     *string
	Reason      string
	CreatedAt   time.Time
}

// ActivityLog is the write-only audit sink for administrative actions.
type ActivityLog struct {
	ID         string
	ActorID    *string
	Action     string
	EntityType string
	EntityID   string
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
