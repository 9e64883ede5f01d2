package domain

import "time"

// Customer is the WhatsApp contact a ticket belongs to.
type Customer struct {
	ID           string
	PhoneNumber  string
	WaID         string
	Name         string
	TotalTickets int
	Blocked      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
