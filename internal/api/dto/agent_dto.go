package dto

import (
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

// RegisterAgentRequest creates an operator account.
type RegisterAgentRequest struct {
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Password    string           `json:"password"`
	Role        domain.AgentRole `json:"role"`
	MaxCapacity int              `json:"max_capacity"`
}

// LoginRequest authenticates an agent.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest rotates an agent's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Agent     AgentView `json:"agent"`
}

// AgentView is the wire shape of an agent.
type AgentView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Email             string             `json:"email"`
	Role              domain.AgentRole   `json:"role"`
	Status            domain.AgentStatus `json:"status"`
	Online            bool               `json:"online"`
	OnBreak           bool               `json:"on_break"`
	ActiveTickets     int                `json:"active_tickets"`
	MaxCapacity       int                `json:"max_capacity"`
	BreakMinutesToday int                `json:"break_minutes_today"`
}

// AgentViewFrom maps an agent onto its wire shape.
func AgentViewFrom(agent *domain.Agent) AgentView {
	return AgentView{
		ID:                agent.ID,
		Name:              agent.Name,
		Email:             agent.Email,
		Role:              agent.Role,
		Status:            agent.Status,
		Online:            agent.Online,
		OnBreak:           agent.OnBreak,
		ActiveTickets:     agent.ActiveTickets,
		MaxCapacity:       agent.MaxCapacity,
		BreakMinutesToday: agent.BreakMinutesToday,
	}
}

// BreakSessionView is the wire shape of a break session.
type BreakSessionView struct {
	ID              string     `json:"id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
}

// BreakSessionViewFrom maps a session onto its wire shape.
func BreakSessionViewFrom(session *domain.AgentBreakSession) BreakSessionView {
	return BreakSessionView{
		ID:              session.ID,
		StartTime:       session.StartTime,
		EndTime:         session.EndTime,
		DurationSeconds: session.DurationSeconds,
	}
}

// DailyKPIView is the wire shape of a daily scorecard.
type DailyKPIView struct {
	AgentID            string    `json:"agent_id"`
	Date               time.Time `json:"date"`
	TotalTickets       int       `json:"total_tickets"`
	ClosedTickets      int       `json:"closed_tickets"`
	AvgResponseSeconds int       `json:"avg_response_seconds"`
	MessagesSent       int       `json:"messages_sent"`
	MessagesReceived   int       `json:"messages_received"`
	DelayCount         int       `json:"delay_count"`
	BreakSeconds       int       `json:"break_seconds"`
	BreakCount         int       `json:"break_count"`
	SatisfactionScore  float64   `json:"satisfaction_score"`
	FirstResponseRate  float64   `json:"first_response_rate"`
	ResolutionRate     float64   `json:"resolution_rate"`
	OverallScore       float64   `json:"overall_score"`
}

// DailyKPIViewFrom maps a scorecard onto its wire shape.
func DailyKPIViewFrom(kpi *domain.AgentKPI) DailyKPIView {
	return DailyKPIView{
		AgentID:            kpi.AgentID,
		Date:               kpi.Date,
		TotalTickets:       kpi.TotalTickets,
		ClosedTickets:      kpi.ClosedTickets,
		AvgResponseSeconds: kpi.AvgResponseSeconds,
		MessagesSent:       kpi.MessagesSent,
		MessagesReceived:   kpi.MessagesReceived,
		DelayCount:         kpi.DelayCount,
		BreakSeconds:       kpi.BreakSeconds,
		BreakCount:         kpi.BreakCount,
		SatisfactionScore:  kpi.SatisfactionScore,
		FirstResponseRate:  kpi.FirstResponseRate,
		ResolutionRate:     kpi.ResolutionRate,
		OverallScore:       kpi.OverallScore,
	}
}

// MonthlyKPIView is the wire shape of a monthly rollup.
type MonthlyKPIView struct {
	AgentID            string    `json:"agent_id"`
	Month              time.Time `json:"month"`
	TotalTickets       int       `json:"total_tickets"`
	ClosedTickets      int       `json:"closed_tickets"`
	AvgResponseSeconds int       `json:"avg_response_seconds"`
	MessagesSent       int       `json:"messages_sent"`
	MessagesReceived   int       `json:"messages_received"`
	DelayCount         int       `json:"delay_count"`
	SatisfactionScore  float64   `json:"satisfaction_score"`
	OverallScore       float64   `json:"overall_score"`
	Rank               int       `json:"rank"`
}

// MonthlyKPIViewFrom maps a rollup onto its wire shape.
func MonthlyKPIViewFrom(kpi *domain.AgentKPIMonthly) MonthlyKPIView {
	return MonthlyKPIView{
		AgentID:            kpi.AgentID,
		Month:              kpi.Month,
		TotalTickets:       kpi.TotalTickets,
		ClosedTickets:      kpi.ClosedTickets,
		AvgResponseSeconds: kpi.AvgResponseSeconds,
		MessagesSent:       kpi.MessagesSent,
		MessagesReceived:   kpi.MessagesReceived,
		DelayCount:         kpi.DelayCount,
		SatisfactionScore:  kpi.SatisfactionScore,
		OverallScore:       kpi.OverallScore,
		Rank:               kpi.Rank,
	}
}
