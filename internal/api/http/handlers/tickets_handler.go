package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-engine/internal/api/dto"
	"github.com/spec-kit/support-engine/internal/auth"
	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/observability"
	"github.com/spec-kit/support-engine/internal/repository"
	"github.com/spec-kit/support-engine/internal/service"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	lifecycle  *service.TicketService
	assignment *service.AssignmentService
	metrics    *observability.Metrics
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.TicketService, assignment *service.AssignmentService, metrics *observability.Metrics) *TicketsHandler {
	return &TicketsHandler{lifecycle: lifecycle, assignment: assignment, metrics: metrics}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CustomerWaID == "" || req.Body == "" {
		return apperrors.NewValidationError("customer_wa_id and body required", nil)
	}

	ticket, agent, err := h.lifecycle.CreateTicket(c.UserContext(), service.TicketCreateInput{
		CustomerWaID: req.CustomerWaID,
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		Body:         req.Body,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	if agent != nil {
		h.metrics.RecordEngine("assignments")
	}

	response := fiber.Map{"data": dto.TicketSummaryFrom(ticket)}
	if agent != nil {
		response["assigned_agent"] = dto.AgentViewFrom(agent)
	}
	return c.Status(http.StatusCreated).JSON(response)
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.lifecycle.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketSummaryFrom(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// GetTicketByNumber GET /tickets/number/:number.
func (h *TicketsHandler) GetTicketByNumber(c *fiber.Ctx) error {
	ticket, err := h.lifecycle.GetTicketByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	msgs, err := h.lifecycle.ListMessages(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageView, 0, len(msgs))
	for i := range msgs {
		items = append(items, dto.MessageViewFrom(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	var req dto.AddMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Body == "" {
		return apperrors.NewValidationError("body required", nil)
	}

	input := service.MessageInput{
		SenderRole: req.SenderRole,
		SenderID:   req.SenderID,
		Body:       req.Body,
	}
	if input.SenderRole == "" {
		input.SenderRole = domain.SenderCustomer
	}
	if input.SenderRole == domain.SenderAgent && input.SenderID == nil {
		if principal, ok := auth.PrincipalFromContext(c); ok {
			id := principal.Agent.ID
			input.SenderID = &id
		}
	}

	ticket, err := h.lifecycle.RecordMessage(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// SelectCategory POST /tickets/:id/category.
func (h *TicketsHandler) SelectCategory(c *fiber.Ctx) error {
	var req dto.SelectCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.SelectCategory(c.UserContext(), c.Params("id"), req.Category)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Transfer POST /tickets/:id/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ToAgentID == "" {
		return apperrors.NewValidationError("to_agent_id required", nil)
	}

	ticket, err := h.lifecycle.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	result, err := h.assignment.Transfer(c.UserContext(), ticket, req.ToAgentID, principal.Actor(), req.Reason)
	if err != nil {
		return err
	}
	h.metrics.RecordEngine("transfers")
	return c.JSON(fiber.Map{
		"data":  dto.TicketSummaryFrom(result.Ticket),
		"agent": dto.AgentViewFrom(result.Agent),
	})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.lifecycle.CloseTicket(c.UserContext(), c.Params("id"), principal.Actor(), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Rate POST /tickets/:id/rating.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	var req dto.RateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.lifecycle.RateTicket(c.UserContext(), c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"ticket_id": record.TicketID,
		"rating":    record.Rating,
	}})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.lifecycle.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.StateLogView, 0, len(entries))
	for i := range entries {
		items = append(items, dto.StateLogViewFrom(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if v := c.Query("customer_id"); v != "" {
		filter.CustomerID = &v
	}
	if v := c.Query("agent_id"); v != "" {
		filter.CurrentAgentID = &v
	}
	if v := c.Query("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
			if status == domain.TicketStatusOpen || status == domain.TicketStatusClosed {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	if v := c.Query("unassigned"); v == "true" {
		filter.Unassigned = true
	}
	if v := c.Query("created_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedFrom = &t
		}
	}
	if v := c.Query("created_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.CreatedTo = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	return filter
}
