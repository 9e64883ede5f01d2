package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/events"
	"github.com/spec-kit/support-engine/internal/registry"
	"github.com/spec-kit/support-engine/internal/repository"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// BreakService owns break sessions and the presence side of agent
// lifecycle. Starting a break or logging out drains the agent's open
// tickets to colleagues before the agent drops out of the rotation.
type BreakService struct {
	registry   *registry.Registry
	sessions   repository.BreakSessionRepository
	assignment *AssignmentService
	activity   repository.ActivityLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

// BreakDependencies bundles collaborators for the break service.
type BreakDependencies struct {
	Registry    *registry.Registry
	SessionRepo repository.BreakSessionRepository
	Assignment  *AssignmentService
	ActivityLog repository.ActivityLogRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// BreakResult reports a break toggle together with the redistribution
// outcome, when one ran.
type BreakResult struct {
	Agent   *domain.Agent
	Session *domain.AgentBreakSession
	Drained *RedistributionReport
}

// NewBreakService constructs the service.
func NewBreakService(deps BreakDependencies) *BreakService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &BreakService{
		registry:   deps.Registry,
		sessions:   deps.SessionRepo,
		assignment: deps.Assignment,
		activity:   deps.ActivityLog,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      clock,
	}
}

// StartBreak flips the agent onto break, opens the session row and
// redistributes the agent's open tickets. The flag flip is atomic, so a
// second concurrent start gets AlreadyOnBreak.
func (s *BreakService) StartBreak(ctx context.Context, agentID string, actor domain.Actor) (*BreakResult, error) {
	now := s.clock()
	agent, _, err := s.registry.SetBreak(ctx, agentID, true, now)
	if err != nil {
		return nil, err
	}

	session := &domain.AgentBreakSession{
		AgentID:   agentID,
		StartTime: now,
	}
	if err := s.sessions.Open(ctx, session); err != nil {
		s.logger.Error("failed to open break session row",
			zap.String("agent_id", agentID), zap.Error(err))
	}

	report, err := s.assignment.Redistribute(ctx, agentID, "break started")
	if err != nil {
		s.logger.Error("break redistribution incomplete",
			zap.String("agent_id", agentID), zap.Error(err))
	}

	s.audit(ctx, actor, "break_started", agentID, nil, map[string]any{"session_id": session.ID})
	s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventAgentBreakStarted,
		AgentID:   agentID,
		Timestamp: now,
		Payload:   events.AgentBreakPayload{SessionID: session.ID},
	})
	return &BreakResult{Agent: agent, Session: session, Drained: report}, nil
}

// EndBreak closes the open session and returns the agent to rotation.
func (s *BreakService) EndBreak(ctx context.Context, agentID string, actor domain.Actor) (*BreakResult, error) {
	now := s.clock()
	agent, elapsed, err := s.registry.SetBreak(ctx, agentID, false, now)
	if err != nil {
		return nil, err
	}

	duration := int(elapsed.Seconds())
	session, err := s.sessions.GetOpenByAgent(ctx, agentID)
	switch {
	case err == nil:
		if err := s.sessions.Close(ctx, session.ID, now, duration); err != nil {
			s.logger.Error("failed to close break session row",
				zap.String("agent_id", agentID),
				zap.String("session_id", session.ID),
				zap.Error(err))
		} else {
			session.EndTime = &now
			session.DurationSeconds = &duration
		}
	case err == pgx.ErrNoRows:
		s.logger.Warn("no open break session row on break end",
			zap.String("agent_id", agentID))
	default:
		s.logger.Error("failed to load open break session",
			zap.String("agent_id", agentID), zap.Error(err))
	}

	s.audit(ctx, actor, "break_ended", agentID,
		nil, map[string]any{"duration_seconds": duration})
	s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventAgentBreakEnded,
		AgentID:   agentID,
		Timestamp: now,
		Payload:   events.AgentBreakPayload{SessionID: sessionID(session), DurationSeconds: duration},
	})

	result := &BreakResult{Agent: agent}
	if session != nil && err == nil {
		result.Session = session
	}
	return result, nil
}

// Login marks the agent online and available.
func (s *BreakService) Login(ctx context.Context, agentID string, actor domain.Actor) (*domain.Agent, error) {
	agent, err := s.registry.SetOnline(ctx, agentID, true)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "agent_login", agentID, nil, nil)
	return agent, nil
}

// Logout drains the agent's open tickets to colleagues, then takes the
// agent offline. Any open break session is closed on the way out.
func (s *BreakService) Logout(ctx context.Context, agentID string, actor domain.Actor) (*BreakResult, error) {
	now := s.clock()

	report, err := s.assignment.Redistribute(ctx, agentID, "agent logged out")
	if err != nil {
		s.logger.Error("logout redistribution incomplete",
			zap.String("agent_id", agentID), zap.Error(err))
	}

	if session, sessErr := s.sessions.GetOpenByAgent(ctx, agentID); sessErr == nil {
		duration := int(now.Sub(session.StartTime).Seconds())
		if closeErr := s.sessions.Close(ctx, session.ID, now, duration); closeErr != nil {
			s.logger.Error("failed to close break session on logout",
				zap.String("agent_id", agentID), zap.Error(closeErr))
		}
	}

	agent, err := s.registry.SetOnline(ctx, agentID, false)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, "agent_logout", agentID, nil, nil)
	return &BreakResult{Agent: agent, Drained: report}, nil
}

// Sessions returns the agent's closed break sessions in a window.
func (s *BreakService) Sessions(ctx context.Context, agentID string, from, to time.Time) ([]domain.AgentBreakSession, error) {
	sessions, err := s.sessions.ListClosedByAgentBetween(ctx, agentID, from, to)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return sessions, nil
}

func (s *BreakService) audit(ctx context.Context, actor domain.Actor, action, agentID string, oldValue, newValue map[string]any) {
	if err := s.activity.Append(ctx, &domain.ActivityLog{
		ActorID:    actorRef(actor),
		Action:     action,
		EntityType: "agent",
		EntityID:   agentID,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  s.clock(),
	}); err != nil {
		s.logger.Error("failed to write activity log",
			zap.String("action", action),
			zap.String("agent_id", agentID),
			zap.Error(err))
	}
}

func sessionID(session *domain.AgentBreakSession) string {
	if session == nil {
		return ""
	}
	return session.ID
}
