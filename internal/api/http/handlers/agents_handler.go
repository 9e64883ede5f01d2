package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-engine/internal/api/dto"
	"github.com/spec-kit/support-engine/internal/auth"
	"github.com/spec-kit/support-engine/internal/registry"
	"github.com/spec-kit/support-engine/internal/service"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// AgentsHandler manages agent presence, breaks and scorecards.
type AgentsHandler struct {
	registry *registry.Registry
	breaks   *service.BreakService
	kpis     *service.KPIService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(reg *registry.Registry, breaks *service.BreakService, kpis *service.KPIService) *AgentsHandler {
	return &AgentsHandler{registry: reg, breaks: breaks, kpis: kpis}
}

// Available GET /agents/available.
func (h *AgentsHandler) Available(c *fiber.Ctx) error {
	agents, err := h.registry.ListAvailable(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AgentView, 0, len(agents))
	for i := range agents {
		items = append(items, dto.AgentViewFrom(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Me GET /agents/me.
func (h *AgentsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	agent, err := h.registry.Get(c.UserContext(), principal.Agent.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AgentViewFrom(agent)})
}

// StartBreak POST /agents/me/break/start.
func (h *AgentsHandler) StartBreak(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	result, err := h.breaks.StartBreak(c.UserContext(), principal.Agent.ID, principal.Actor())
	if err != nil {
		return err
	}

	response := fiber.Map{
		"data":    dto.AgentViewFrom(result.Agent),
		"session": dto.BreakSessionViewFrom(result.Session),
	}
	if result.Drained != nil {
		response["redistribution"] = fiber.Map{
			"moved":    result.Drained.Moved,
			"unplaced": result.Drained.Unplaced,
		}
	}
	return c.JSON(response)
}

// EndBreak POST /agents/me/break/end.
func (h *AgentsHandler) EndBreak(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	result, err := h.breaks.EndBreak(c.UserContext(), principal.Agent.ID, principal.Actor())
	if err != nil {
		return err
	}

	response := fiber.Map{"data": dto.AgentViewFrom(result.Agent)}
	if result.Session != nil {
		response["session"] = dto.BreakSessionViewFrom(result.Session)
	}
	return c.JSON(response)
}

// Logout POST /agents/me/logout.
func (h *AgentsHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	result, err := h.breaks.Logout(c.UserContext(), principal.Agent.ID, principal.Actor())
	if err != nil {
		return err
	}

	response := fiber.Map{"data": dto.AgentViewFrom(result.Agent)}
	if result.Drained != nil {
		response["redistribution"] = fiber.Map{
			"moved":    result.Drained.Moved,
			"unplaced": result.Drained.Unplaced,
		}
	}
	return c.JSON(response)
}

// ForceLogout POST /agents/:id/logout. Supervisors use it to pull a
// stuck agent out of rotation; their tickets drain like a self logout.
func (h *AgentsHandler) ForceLogout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	result, err := h.breaks.Logout(c.UserContext(), c.Params("id"), principal.Actor())
	if err != nil {
		return err
	}

	response := fiber.Map{"data": dto.AgentViewFrom(result.Agent)}
	if result.Drained != nil {
		response["redistribution"] = fiber.Map{
			"moved":    result.Drained.Moved,
			"unplaced": result.Drained.Unplaced,
		}
	}
	return c.JSON(response)
}

// Sessions GET /agents/:id/breaks.
func (h *AgentsHandler) Sessions(c *fiber.Ctx) error {
	from, to := parseWindow(c)
	sessions, err := h.breaks.Sessions(c.UserContext(), c.Params("id"), from, to)
	if err != nil {
		return err
	}
	items := make([]dto.BreakSessionView, 0, len(sessions))
	for i := range sessions {
		items = append(items, dto.BreakSessionViewFrom(&sessions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DailyKPI GET /agents/:id/kpi/daily.
func (h *AgentsHandler) DailyKPI(c *fiber.Ctx) error {
	date := time.Now().UTC()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return apperrors.NewValidationError("date must be YYYY-MM-DD", nil)
		}
		date = parsed
	}
	kpi, err := h.kpis.Daily(c.UserContext(), c.Params("id"), date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DailyKPIViewFrom(kpi)})
}

// MonthlyKPI GET /agents/:id/kpi/monthly.
func (h *AgentsHandler) MonthlyKPI(c *fiber.Ctx) error {
	month := time.Now().UTC()
	if v := c.Query("month"); v != "" {
		parsed, err := time.Parse("2006-01", v)
		if err != nil {
			return apperrors.NewValidationError("month must be YYYY-MM", nil)
		}
		month = parsed
	}
	kpi, err := h.kpis.Monthly(c.UserContext(), c.Params("id"), month)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MonthlyKPIViewFrom(kpi)})
}

// RecomputeMonthly POST /agents/kpi/monthly/recompute.
func (h *AgentsHandler) RecomputeMonthly(c *fiber.Ctx) error {
	month := time.Now().UTC()
	if v := c.Query("month"); v != "" {
		parsed, err := time.Parse("2006-01", v)
		if err != nil {
			return apperrors.NewValidationError("month must be YYYY-MM", nil)
		}
		month = parsed
	}
	rollups, err := h.kpis.RecomputeMonthly(c.UserContext(), month)
	if err != nil {
		return err
	}
	items := make([]dto.MonthlyKPIView, 0, len(rollups))
	for i := range rollups {
		items = append(items, dto.MonthlyKPIViewFrom(&rollups[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseWindow(c *fiber.Ctx) (time.Time, time.Time) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -1)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}
	return from, to
}
