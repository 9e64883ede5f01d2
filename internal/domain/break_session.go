package domain

import "time"

// AgentBreakSession tracks one break. A row is opened when the break
// starts (EndTime nil) and closed exactly once when it ends; immutable
// after closure.
type AgentBreakSession struct {
	ID              string
	AgentID         string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds *int
	CreatedAt       time.Time
}

// Open reports whether the session is still running.
func (s *AgentBreakSession) Open() bool {
	return s.EndTime == nil
}
