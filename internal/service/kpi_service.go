package service

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/events"
	"github.com/spec-kit/support-engine/internal/repository"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// KPIService derives agent scorecards. Rollups recompute every figure
// from the raw rows for the window and upsert the result, so reruns
// converge instead of compounding.
type KPIService struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	sessions repository.BreakSessionRepository
	ratings  repository.SatisfactionRepository
	kpis     repository.KPIRepository
	agents   repository.AgentRepository
	logger   *zap.Logger
	clock    func() time.Time
}

// KPIDependencies bundles collaborators for the KPI service.
type KPIDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.MessageRepository
	SessionRepo  repository.BreakSessionRepository
	Satisfaction repository.SatisfactionRepository
	KPIRepo      repository.KPIRepository
	AgentRepo    repository.AgentRepository
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewKPIService constructs the service.
func NewKPIService(deps KPIDependencies) *KPIService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &KPIService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		sessions: deps.SessionRepo,
		ratings:  deps.Satisfaction,
		kpis:     deps.KPIRepo,
		agents:   deps.AgentRepo,
		logger:   deps.Logger,
		clock:    clock,
	}
}

// SubscribeTo recomputes the closing agent's daily scorecard whenever a
// ticket closes.
func (s *KPIService) SubscribeTo(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketClosed, func(ctx context.Context, event events.Event) error {
		ticket, err := s.tickets.GetByID(ctx, event.TicketID)
		if err != nil {
			return err
		}
		if ticket.AssignedAgentID == nil {
			return nil
		}
		at := event.Timestamp
		if at.IsZero() {
			at = s.clock()
		}
		_, err = s.RecomputeDaily(ctx, *ticket.AssignedAgentID, at)
		return err
	})
}

// RecomputeDaily rebuilds one agent's scorecard for the day containing
// the given instant.
func (s *KPIService) RecomputeDaily(ctx context.Context, agentID string, at time.Time) (*domain.AgentKPI, error) {
	from := at.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	stats, err := s.collect(ctx, agentID, from, to)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListClosedByAgentBetween(ctx, agentID, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	breakSeconds := 0
	for _, session := range sessions {
		if session.DurationSeconds != nil {
			breakSeconds += *session.DurationSeconds
		}
	}

	kpi := &domain.AgentKPI{
		AgentID:            agentID,
		Date:               from,
		TotalTickets:       stats.total,
		ClosedTickets:      stats.closed,
		AvgResponseSeconds: stats.avgResponseSeconds,
		MessagesSent:       stats.sent,
		MessagesReceived:   stats.received,
		DelayCount:         stats.delays,
		BreakSeconds:       breakSeconds,
		BreakCount:         len(sessions),
		SatisfactionScore:  stats.satisfaction,
		FirstResponseRate:  stats.firstResponseRate,
		ResolutionRate:     stats.resolutionRate,
		OverallScore:       overallScore(stats.firstResponseRate, stats.resolutionRate, stats.satisfaction),
	}
	if err := s.kpis.UpsertDaily(ctx, kpi); err != nil {
		return nil, apperrors.MapError(err)
	}
	return kpi, nil
}

// RecomputeMonthly rebuilds the monthly rollup for every active agent
// and assigns ranks by overall score, best first.
func (s *KPIService) RecomputeMonthly(ctx context.Context, month time.Time) ([]domain.AgentKPIMonthly, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	active := true
	agents, err := s.agents.List(ctx, repository.AgentFilter{Active: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	rollups := make([]domain.AgentKPIMonthly, 0, len(agents))
	for _, agent := range agents {
		stats, err := s.collect(ctx, agent.ID, from, to)
		if err != nil {
			return nil, err
		}
		rollups = append(rollups, domain.AgentKPIMonthly{
			AgentID:            agent.ID,
			Month:              from,
			TotalTickets:       stats.total,
			ClosedTickets:      stats.closed,
			AvgResponseSeconds: stats.avgResponseSeconds,
			MessagesSent:       stats.sent,
			MessagesReceived:   stats.received,
			DelayCount:         stats.delays,
			SatisfactionScore:  stats.satisfaction,
			OverallScore:       overallScore(stats.firstResponseRate, stats.resolutionRate, stats.satisfaction),
		})
	}

	sort.Slice(rollups, func(i, j int) bool {
		if rollups[i].OverallScore != rollups[j].OverallScore {
			return rollups[i].OverallScore > rollups[j].OverallScore
		}
		return rollups[i].AgentID < rollups[j].AgentID
	})
	for i := range rollups {
		rollups[i].Rank = i + 1
		if err := s.kpis.UpsertMonthly(ctx, &rollups[i]); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	s.logger.Info("monthly kpi rollup recomputed",
		zap.String("month", from.Format("2006-01")),
		zap.Int("agents", len(rollups)))
	return rollups, nil
}

// Daily returns the stored scorecard for an agent and day.
func (s *KPIService) Daily(ctx context.Context, agentID string, date time.Time) (*domain.AgentKPI, error) {
	kpi, err := s.kpis.GetDaily(ctx, agentID, date.UTC().Truncate(24*time.Hour))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("daily kpi", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	return kpi, nil
}

// Monthly returns the stored rollup for an agent and month.
func (s *KPIService) Monthly(ctx context.Context, agentID string, month time.Time) (*domain.AgentKPIMonthly, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	kpi, err := s.kpis.GetMonthly(ctx, agentID, first)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("monthly kpi", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	return kpi, nil
}

type windowStats struct {
	total              int
	closed             int
	avgResponseSeconds int
	sent               int
	received           int
	delays             int
	satisfaction       float64
	firstResponseRate  float64
	resolutionRate     float64
}

func (s *KPIService) collect(ctx context.Context, agentID string, from, to time.Time) (*windowStats, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		AssignedAgentID: &agentID,
		CreatedFrom:     &from,
		CreatedTo:       &to,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := &windowStats{total: len(tickets)}
	responded := 0
	responseSum := 0
	for _, ticket := range tickets {
		if ticket.Closed() {
			stats.closed++
		}
		if ticket.ResponseTimeSeconds != nil {
			responded++
			responseSum += *ticket.ResponseTimeSeconds
		}
		stats.delays += ticket.DelayCount
	}
	if responded > 0 {
		stats.avgResponseSeconds = responseSum / responded
	}
	if stats.total > 0 {
		stats.firstResponseRate = float64(responded) / float64(stats.total) * 100
		stats.resolutionRate = float64(stats.closed) / float64(stats.total) * 100
	}

	if stats.sent, err = s.messages.CountForAgentBetween(ctx, agentID, domain.SenderAgent, from, to); err != nil {
		return nil, apperrors.MapError(err)
	}
	if stats.received, err = s.messages.CountForAgentBetween(ctx, agentID, domain.SenderCustomer, from, to); err != nil {
		return nil, apperrors.MapError(err)
	}

	ratings, err := s.ratings.ListByAgentBetween(ctx, agentID, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(ratings) > 0 {
		sum := 0
		for _, rating := range ratings {
			sum += rating.Rating
		}
		stats.satisfaction = float64(sum) / float64(len(ratings))
	}
	return stats, nil
}

// overallScore blends the three components onto a 0-100 scale; the 1-5
// satisfaction average is scaled by 20 to match.
func overallScore(firstResponseRate, resolutionRate, satisfaction float64) float64 {
	return (firstResponseRate + resolutionRate + satisfaction*20) / 3
}
