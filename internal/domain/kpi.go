package domain

import "time"

// AgentKPI is the per-agent daily scorecard. Rows are derived and
// recomputed in full on each rollup (upsert by agent+date), never patched
// incrementally.
type AgentKPI struct {
	ID      string
	AgentID string
	Date    time.Time

	TotalTickets       int
	ClosedTickets      int
	AvgResponseSeconds int
	MessagesSent       int
	MessagesReceived   int
	DelayCount         int

	BreakSeconds int
	BreakCount   int

	SatisfactionScore float64
	FirstResponseRate float64
	ResolutionRate    float64
	OverallScore      float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AgentKPIMonthly is the monthly rollup, keyed by agent and the first day
// of the month. Rank orders agents by OverallScore within the month.
type AgentKPIMonthly struct {
	ID      string
	AgentID string
	Month   time.Time

	TotalTickets       int
	ClosedTickets      int
	AvgResponseSeconds int
	MessagesSent       int
	MessagesReceived   int
	DelayCount         int

	SatisfactionScore float64
	OverallScore      float64
	Rank              int

	CreatedAt time.Time
	UpdatedAt time.Time
}
