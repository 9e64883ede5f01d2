package domain

import "time"

// SenderRole indicates who authored a message.
type SenderRole string

const (
	SenderCustomer SenderRole = "CUSTOMER"
	SenderAgent    SenderRole = "AGENT"
	SenderSystem   SenderRole = "SYSTEM"
)

// MessageDirection distinguishes inbound from outbound traffic.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "INCOMING"
	DirectionOutgoing MessageDirection = "OUTGOING"
)

// Message records one message observed on a ticket. Delivery is handled by
// the excluded transport layer; the engine only consumes timing and sender
// role for delay detection and KPI rollups.
type Message struct {
	ID        string
	TicketID  string
	SenderID  *string
	Role      SenderRole
	Direction MessageDirection
	Body      string
	CreatedAt time.Time
}
