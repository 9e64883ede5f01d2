package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/events"
	"github.com/spec-kit/support-engine/internal/registry"
	"github.com/spec-kit/support-engine/internal/repository"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// AssignmentService routes tickets to the least loaded eligible agent.
type AssignmentService struct {
	registry   *registry.Registry
	tickets    repository.TicketRepository
	transfers  repository.TransferLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	Registry    *registry.Registry
	TicketRepo  repository.TicketRepository
	TransferLog repository.TransferLogRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// AssignmentResult reports a single routing outcome. Agent is nil when
// no eligible agent existed and the ticket stayed queued.
type AssignmentResult struct {
	Ticket *domain.Ticket
	Agent  *domain.Agent
}

// RedistributionReport summarizes a bulk reassignment pass. Unplaced
// tickets stay with the source agent until a later retry finds a taker.
type RedistributionReport struct {
	Moved    int
	Unplaced int
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AssignmentService{
		registry:   deps.Registry,
		tickets:    deps.TicketRepo,
		transfers:  deps.TransferLog,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      clock,
	}
}

// Assign routes an unassigned ticket to the least loaded eligible agent.
// Candidates are tried in load order until a slot reservation wins, so a
// concurrent reservation on the same agent just moves on to the next
// candidate. A nil Agent in the result means the ticket stays queued.
func (s *AssignmentService) Assign(ctx context.Context, ticket *domain.Ticket) (*AssignmentResult, error) {
	if ticket.Closed() {
		return nil, apperrors.NewInvalidTransition("closed tickets cannot be assigned",
			map[string]any{"ticket_id": ticket.ID})
	}

	agent, err := s.reserveLeastLoaded(ctx, "")
	if err != nil {
		return nil, err
	}
	if agent == nil {
		s.logger.Info("no agent available, ticket queued",
			zap.String("ticket_id", ticket.ID),
			zap.String("ticket_number", ticket.Number))
		return &AssignmentResult{Ticket: ticket}, nil
	}

	if err := s.bind(ctx, ticket, agent, nil, "auto assignment"); err != nil {
		if _, releaseErr := s.registry.ReleaseSlot(ctx, agent.ID); releaseErr != nil {
			s.logger.Error("failed to release slot after bind failure",
				zap.String("agent_id", agent.ID), zap.Error(releaseErr))
		}
		return nil, err
	}
	return &AssignmentResult{Ticket: ticket, Agent: agent}, nil
}

// Transfer moves a ticket to a specific agent, reserving the target slot
// before touching the ticket. The source slot is released only after the
// ticket row is rebound, so a failed transfer leaves both counts intact.
func (s *AssignmentService) Transfer(ctx context.Context, ticket *domain.Ticket, toAgentID string, actor domain.Actor, reason string) (*AssignmentResult, error) {
	if ticket.Closed() {
		return nil, apperrors.NewInvalidTransition("closed tickets cannot be transferred",
			map[string]any{"ticket_id": ticket.ID})
	}
	if ticket.CurrentAgentID != nil && *ticket.CurrentAgentID == toAgentID {
		return nil, apperrors.NewValidationError("ticket already held by target agent", nil)
	}

	target, err := s.registry.ReserveSlot(ctx, toAgentID)
	if err != nil {
		return nil, err
	}

	fromAgentID := ticket.CurrentAgentID
	if err := s.bind(ctx, ticket, target, actorRef(actor), reason); err != nil {
		if _, releaseErr := s.registry.ReleaseSlot(ctx, toAgentID); releaseErr != nil {
			s.logger.Error("failed to release slot after bind failure",
				zap.String("agent_id", toAgentID), zap.Error(releaseErr))
		}
		return nil, err
	}

	if fromAgentID != nil {
		if _, err := s.registry.ReleaseSlot(ctx, *fromAgentID); err != nil {
			s.logger.Error("failed to release source slot after transfer",
				zap.String("agent_id", *fromAgentID),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return &AssignmentResult{Ticket: ticket, Agent: target}, nil
}

// Redistribute reassigns every open ticket held by the excluded agent,
// one ticket at a time, best effort. Tickets that find no taker keep
// pointing at the source agent; the sweeper retries them while that
// agent is off rotation. The excluded agent's count is reconciled
// afterwards rather than decremented per ticket, so the pass is safe to
// re-run.
func (s *AssignmentService) Redistribute(ctx context.Context, fromAgentID, reason string) (*RedistributionReport, error) {
	open, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		CurrentAgentID: &fromAgentID,
		Statuses:       []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	report := &RedistributionReport{}
	for i := range open {
		ticket := &open[i]
		agent, err := s.reserveLeastLoaded(ctx, fromAgentID)
		if err != nil {
			return report, err
		}
		if agent == nil {
			s.logger.Warn("no agent available, ticket stays with source agent",
				zap.String("ticket_id", ticket.ID),
				zap.String("agent_id", fromAgentID),
				zap.String("reason", reason))
			report.Unplaced++
			continue
		}
		if err := s.bind(ctx, ticket, agent, nil, reason); err != nil {
			if _, releaseErr := s.registry.ReleaseSlot(ctx, agent.ID); releaseErr != nil {
				s.logger.Error("failed to release slot after bind failure",
					zap.String("agent_id", agent.ID), zap.Error(releaseErr))
			}
			return report, err
		}
		report.Moved++
	}

	if _, err := s.registry.Reconcile(ctx, fromAgentID); err != nil {
		s.logger.Error("failed to reconcile agent after redistribution",
			zap.String("agent_id", fromAgentID), zap.Error(err))
	}
	s.logger.Info("redistributed agent tickets",
		zap.String("from_agent_id", fromAgentID),
		zap.Int("moved", report.Moved),
		zap.Int("unplaced", report.Unplaced))
	return report, nil
}

// AssignOrphans retries routing for open tickets without an agent in
// rotation: tickets that never found one, and tickets still held by an
// agent who went on break or offline before a colleague could take
// them. Used by the background sweeper.
func (s *AssignmentService) AssignOrphans(ctx context.Context) (int, error) {
	open, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	assigned := 0
	for i := range open {
		ticket := &open[i]
		holderID := ""
		if ticket.CurrentAgentID != nil {
			holder, err := s.registry.Get(ctx, *ticket.CurrentAgentID)
			if err != nil {
				return assigned, err
			}
			if holder.Online && !holder.OnBreak && holder.Active {
				continue
			}
			holderID = holder.ID
		}

		agent, err := s.reserveLeastLoaded(ctx, holderID)
		if err != nil {
			return assigned, err
		}
		if agent == nil {
			break
		}
		if err := s.bind(ctx, ticket, agent, nil, "auto assignment"); err != nil {
			if _, releaseErr := s.registry.ReleaseSlot(ctx, agent.ID); releaseErr != nil {
				s.logger.Error("failed to release slot after bind failure",
					zap.String("agent_id", agent.ID), zap.Error(releaseErr))
			}
			return assigned, err
		}
		if holderID != "" {
			if _, err := s.registry.ReleaseSlot(ctx, holderID); err != nil {
				s.logger.Error("failed to release source slot after retry",
					zap.String("agent_id", holderID),
					zap.String("ticket_id", ticket.ID),
					zap.Error(err))
			}
		}
		assigned++
	}
	return assigned, nil
}

// reserveLeastLoaded walks the candidate list in load order and returns
// the first agent whose slot reservation succeeds, nil when none does.
func (s *AssignmentService) reserveLeastLoaded(ctx context.Context, excludeAgentID string) (*domain.Agent, error) {
	candidates, err := s.registry.ListAvailable(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range candidates {
		if candidates[i].ID == excludeAgentID {
			continue
		}
		agent, err := s.registry.ReserveSlot(ctx, candidates[i].ID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeCapacityExceeded) {
				continue
			}
			return nil, err
		}
		return agent, nil
	}
	return nil, nil
}

// bind rewrites the ticket's agent pointers and writes the transfer log.
func (s *AssignmentService) bind(ctx context.Context, ticket *domain.Ticket, agent *domain.Agent, actorID *string, reason string) error {
	now := s.clock()
	fromAgentID := ticket.CurrentAgentID
	firstAssignment := ticket.AssignedAgentID == nil

	agentID := agent.ID
	if firstAssignment {
		ticket.AssignedAgentID = &agentID
	}
	ticket.CurrentAgentID = &agentID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}

	if err := s.transfers.Append(ctx, &domain.TicketTransferLog{
		TicketID:    ticket.ID,
		FromAgentID: fromAgentID,
		ToAgentID:   agentID,
		ActorID:     actorID,
		Reason:      reason,
		CreatedAt:   now,
	}); err != nil {
		s.logger.Error("failed to write transfer log",
			zap.String("ticket_id", ticket.ID),
			zap.String("to_agent_id", agentID),
			zap.Error(err))
	}

	eventType := events.EventTicketTransferred
	var payload any = events.TicketTransferredPayload{
		FromAgentID: fromAgentID,
		ToAgentID:   agentID,
		Reason:      reason,
	}
	if firstAssignment && fromAgentID == nil {
		eventType = events.EventTicketAssigned
		payload = events.TicketAssignedPayload{AgentID: agentID}
	}
	s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		TicketID:  ticket.ID,
		AgentID:   agentID,
		Timestamp: now,
		Payload:   payload,
	})
	return nil
}
