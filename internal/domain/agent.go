package domain

import "time"

// AgentStatus enumerates agent availability states.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "AVAILABLE"
	AgentStatusBusy      AgentStatus = "BUSY"
	AgentStatusOffline   AgentStatus = "OFFLINE"
	AgentStatusOnBreak   AgentStatus = "ON_BREAK"
)

// AgentRole enumerates operator roles.
type AgentRole string

const (
	RoleAgent      AgentRole = "AGENT"
	RoleSupervisor AgentRole = "SUPERVISOR"
	RoleAdmin      AgentRole = "ADMIN"
)

// Agent models a support operator handling customer conversations.
// Capacity fields are owned by the registry: callers never read-modify-write
// ActiveTickets or Status directly, only through reserve/release operations.
type Agent struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	Role              AgentRole
	MaxCapacity       int
	ActiveTickets     int
	Online            bool
	Status            AgentStatus
	OnBreak           bool
	BreakStartedAt    *time.Time
	BreakMinutesToday int
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanReceive reports whether the agent qualifies for new assignments.
func (a *Agent) CanReceive() bool {
	return a.Online && a.Active && !a.OnBreak &&
		a.Status == AgentStatusAvailable &&
		a.ActiveTickets < a.MaxCapacity
}
