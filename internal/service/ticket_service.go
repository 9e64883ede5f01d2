package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/events"
	"github.com/spec-kit/support-engine/internal/identity"
	"github.com/spec-kit/support-engine/internal/registry"
	"github.com/spec-kit/support-engine/internal/repository"
	"github.com/spec-kit/support-engine/internal/sla"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// TicketService owns the ticket lifecycle: creation, message bookkeeping,
// delay transitions, closure. Mutations on one ticket are serialized with
// a per-ticket mutex so delay evaluation and closure cannot interleave.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	customers  repository.CustomerRepository
	stateLogs  repository.StateLogRepository
	ratings    repository.SatisfactionRepository
	registry   *registry.Registry
	assignment *AssignmentService
	detector   *sla.Detector
	allocator  identity.Allocator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.MessageRepository
	CustomerRepo repository.CustomerRepository
	StateLog     repository.StateLogRepository
	Satisfaction repository.SatisfactionRepository
	Registry     *registry.Registry
	Assignment   *AssignmentService
	Detector     *sla.Detector
	Allocator    identity.Allocator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        func() time.Time
}

// TicketCreateInput describes an inbound conversation opening.
type TicketCreateInput struct {
	CustomerWaID string
	CustomerName string
	PhoneNumber  string
	Body         string
	Priority     domain.TicketPriority
}

// MessageInput describes one inbound or outbound message.
type MessageInput struct {
	SenderRole domain.SenderRole
	SenderID   *string
	Body       string
	WaID       string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		customers:  deps.CustomerRepo,
		stateLogs:  deps.StateLog,
		ratings:    deps.Satisfaction,
		registry:   deps.Registry,
		assignment: deps.Assignment,
		detector:   deps.Detector,
		allocator:  deps.Allocator,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      clock,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *TicketService) lockFor(ticketID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[ticketID] = lock
	}
	return lock
}

// CreateTicket opens a conversation: resolves or registers the customer,
// allocates the ticket number, persists the ticket and the opening
// message, then routes it to the least loaded agent. A ticket with no
// eligible agent stays open and unassigned.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, *domain.Agent, error) {
	if strings.TrimSpace(input.CustomerWaID) == "" {
		return nil, nil, apperrors.NewValidationError("customer wa_id is required", nil)
	}
	now := s.clock()

	customer, err := s.resolveCustomer(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	number, err := s.allocator.Next(ctx, now)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		Number:                number,
		CustomerID:            customer.ID,
		Status:                domain.TicketStatusOpen,
		Category:              domain.CategoryGeneral,
		Priority:              input.Priority,
		CreatedAt:             now,
		LastMessageAt:         &now,
		LastCustomerMessageAt: &now,
		MessagesCount:         1,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.PriorityMedium
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	if err := s.messages.Create(ctx, &domain.Message{
		TicketID:  ticket.ID,
		Role:      domain.SenderCustomer,
		Direction: domain.DirectionIncoming,
		Body:      input.Body,
		CreatedAt: now,
	}); err != nil {
		s.logger.Error("failed to persist opening message",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.appendStateLog(ctx, ticket, "", domain.TicketStatusOpen, nil, "ticket created")
	s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Timestamp: now,
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			CustomerID: ticket.CustomerID,
			Priority:   ticket.Priority,
		},
	})

	result, err := s.assignment.Assign(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	return result.Ticket, result.Agent, nil
}

// RecordMessage appends a message to an open ticket and updates the
// response bookkeeping. The first agent reply stamps FirstResponseAt and
// the response time; any agent reply on a delayed ticket recovers it.
func (s *TicketService) RecordMessage(ctx context.Context, ticketID string, input MessageInput) (*domain.Ticket, error) {
	lock := s.lockFor(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Closed() {
		return nil, apperrors.NewInvalidTransition("closed tickets do not accept messages",
			map[string]any{"ticket_id": ticketID})
	}

	now := s.clock()
	direction := domain.DirectionIncoming
	if input.SenderRole == domain.SenderAgent {
		direction = domain.DirectionOutgoing
	}
	if err := s.messages.Create(ctx, &domain.Message{
		TicketID:  ticket.ID,
		Role:      input.SenderRole,
		SenderID:  input.SenderID,
		Direction: direction,
		Body:      input.Body,
		CreatedAt: now,
	}); err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket.MessagesCount++
	ticket.LastMessageAt = &now
	switch input.SenderRole {
	case domain.SenderCustomer:
		// Evaluate against the previous waiting window before this
		// message resets it, so a breach is flagged at arrival instead
		// of waiting for the next sweep.
		if verdict := s.detector.Evaluate(ticket, now); verdict.Delayed && !ticket.IsDelayed {
			s.flagDelayedLocked(ctx, ticket, now, verdict.Waiting)
		}
		ticket.LastCustomerMessageAt = &now
	case domain.SenderAgent:
		ticket.LastAgentMessageAt = &now
		if ticket.FirstResponseAt == nil {
			ticket.FirstResponseAt = &now
			ticket.ResponseTimeSeconds = intRef(int(now.Sub(ticket.CreatedAt).Seconds()))
		}
		if ticket.IsDelayed {
			s.recoverLocked(ctx, ticket, now)
		}
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// SelectCategory records the customer's menu choice.
func (s *TicketService) SelectCategory(ctx context.Context, ticketID string, category domain.TicketCategory) (*domain.Ticket, error) {
	switch category {
	case domain.CategoryGeneral, domain.CategoryComplaint, domain.CategoryMedicineOrder,
		domain.CategoryConsultation, domain.CategoryFollowUp:
	default:
		return nil, apperrors.NewValidationError("unknown category",
			map[string]any{"category": string(category)})
	}

	lock := s.lockFor(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Closed() {
		return nil, apperrors.NewInvalidTransition("closed tickets cannot be reclassified",
			map[string]any{"ticket_id": ticketID})
	}

	now := s.clock()
	ticket.Category = category
	if ticket.CategorySelectedAt == nil {
		ticket.CategorySelectedAt = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// EvaluateDelay re-checks the response threshold for one ticket and
// flips the delay overlay when the verdict changed. Re-evaluating an
// unchanged verdict is a no-op: no duplicate logs, no double counting.
func (s *TicketService) EvaluateDelay(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	lock := s.lockFor(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	verdict := s.detector.Evaluate(ticket, now)
	switch {
	case verdict.Delayed && !ticket.IsDelayed:
		s.flagDelayedLocked(ctx, ticket, now, verdict.Waiting)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	case !verdict.Delayed && ticket.IsDelayed && ticket.Answered():
		// Only an agent reply recovers a delayed ticket. A customer
		// follow-up narrows the waiting window but leaves the flag.
		s.recoverLocked(ctx, ticket, now)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return ticket, nil
}

// CloseTicket moves an open ticket to its terminal state: finalizes any
// running delay window, stamps handling time, releases the agent slot
// and announces closure for KPI recomputation. Closing twice is an
// invalid transition and leaves no trace.
func (s *TicketService) CloseTicket(ctx context.Context, ticketID string, actor domain.Actor, reason string) (*domain.Ticket, error) {
	lock := s.lockFor(ticketID)
	lock.Lock()
	defer lock.Unlock()

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Closed() {
		return nil, apperrors.NewInvalidTransition("ticket is already closed",
			map[string]any{"ticket_id": ticketID})
	}

	now := s.clock()
	oldEffective := ticket.EffectiveStatus()
	if ticket.IsDelayed {
		s.finalizeDelayWindow(ticket, now)
	}

	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	ticket.ClosureReason = reason
	ticket.ClosedByID = actorRef(actor)
	ticket.HandlingTimeSeconds = intRef(int(now.Sub(ticket.CreatedAt).Seconds()))
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.appendStateLog(ctx, ticket, oldEffective, domain.TicketStatusClosed, actorRef(actor), reason)

	if ticket.CurrentAgentID != nil {
		if _, err := s.registry.ReleaseSlot(ctx, *ticket.CurrentAgentID); err != nil {
			s.logger.Error("failed to release slot on closure",
				zap.String("agent_id", *ticket.CurrentAgentID),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}

	s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketClosed,
		TicketID:  ticket.ID,
		Timestamp: now,
		Payload: events.TicketClosedPayload{
			ClosedByID: ticket.ClosedByID,
			Reason:     reason,
		},
	})
	return ticket, nil
}

// RateTicket stores the customer's satisfaction rating for a closed
// ticket. Ratings are 1..5 and immutable once recorded.
func (s *TicketService) RateTicket(ctx context.Context, ticketID string, rating int, comment string) (*domain.CustomerSatisfaction, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5",
			map[string]any{"rating": rating})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Closed() {
		return nil, apperrors.NewInvalidTransition("only closed tickets can be rated",
			map[string]any{"ticket_id": ticketID})
	}

	record := &domain.CustomerSatisfaction{
		TicketID:  ticket.ID,
		AgentID:   ticket.AssignedAgentID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.clock(),
	}
	if err := s.ratings.Create(ctx, record); err != nil {
		return nil, apperrors.MapError(err)
	}
	return record, nil
}

// GetTicket fetches one ticket by ID.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// GetTicketByNumber fetches one ticket by its public number.
func (s *TicketService) GetTicketByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"number": number})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListMessages returns the ticket's conversation in order.
func (s *TicketService) ListMessages(ctx context.Context, ticketID string) ([]domain.Message, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// History returns the ticket's state transitions in order.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.TicketStateLog, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.stateLogs.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// flagDelayedLocked sets the delay overlay and records the boundary
// crossing. Caller holds the ticket lock and persists the ticket
// afterwards.
func (s *TicketService) flagDelayedLocked(ctx context.Context, ticket *domain.Ticket, now time.Time, waiting time.Duration) {
	ticket.IsDelayed = true
	ticket.DelayStartedAt = &now
	ticket.DelayCount++
	s.appendStateLog(ctx, ticket, domain.TicketStatusOpen, domain.TicketStatusDelayed, nil,
		"response threshold exceeded")
	s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketDelayed,
		TicketID:  ticket.ID,
		Timestamp: now,
		Payload:   events.TicketDelayedPayload{WaitingSeconds: int(waiting.Seconds())},
	})
}

// recoverLocked clears the delay overlay. Caller holds the ticket lock
// and persists the ticket afterwards.
func (s *TicketService) recoverLocked(ctx context.Context, ticket *domain.Ticket, now time.Time) {
	s.finalizeDelayWindow(ticket, now)
	s.appendStateLog(ctx, ticket, domain.TicketStatusDelayed, domain.TicketStatusOpen, nil,
		"agent responded")
	s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketRecovered,
		TicketID:  ticket.ID,
		Timestamp: now,
		Payload:   events.TicketRecoveredPayload{DelayMinutes: ticket.TotalDelayMinutes},
	})
}

// finalizeDelayWindow folds the running delay window into the totals.
func (s *TicketService) finalizeDelayWindow(ticket *domain.Ticket, now time.Time) {
	if ticket.DelayStartedAt != nil {
		ticket.TotalDelayMinutes += int(now.Sub(*ticket.DelayStartedAt).Minutes())
	}
	ticket.IsDelayed = false
	ticket.DelayStartedAt = nil
}

func (s *TicketService) appendStateLog(ctx context.Context, ticket *domain.Ticket, oldState, newState domain.TicketStatus, actorID *string, reason string) {
	if err := s.stateLogs.Append(ctx, &domain.TicketStateLog{
		TicketID:  ticket.ID,
		OldState:  oldState,
		NewState:  newState,
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: s.clock(),
	}); err != nil {
		s.logger.Error("failed to write state log",
			zap.String("ticket_id", ticket.ID),
			zap.String("old_state", string(oldState)),
			zap.String("new_state", string(newState)),
			zap.Error(err))
	}
}

func (s *TicketService) resolveCustomer(ctx context.Context, input TicketCreateInput) (*domain.Customer, error) {
	customer, err := s.customers.GetByWaID(ctx, input.CustomerWaID)
	if err == nil {
		customer.TotalTickets++
		if err := s.customers.Update(ctx, customer); err != nil {
			s.logger.Warn("failed to bump customer ticket count",
				zap.String("customer_id", customer.ID), zap.Error(err))
		}
		return customer, nil
	}
	if err != pgx.ErrNoRows {
		return nil, apperrors.MapError(err)
	}

	customer = &domain.Customer{
		WaID:         input.CustomerWaID,
		PhoneNumber:  input.PhoneNumber,
		Name:         input.CustomerName,
		TotalTickets: 1,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}
