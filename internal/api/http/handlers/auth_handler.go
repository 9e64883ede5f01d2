package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-engine/internal/api/dto"
	"github.com/spec-kit/support-engine/internal/auth"
	"github.com/spec-kit/support-engine/internal/service"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// AuthHandler manages agent account endpoints.
type AuthHandler struct {
	auths  *service.AuthService
	breaks *service.BreakService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(auths *service.AuthService, breaks *service.BreakService) *AuthHandler {
	return &AuthHandler{auths: auths, breaks: breaks}
}

// Register POST /auth/agents/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	agent, err := h.auths.RegisterAgent(c.UserContext(), service.AgentRegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		MaxCapacity: req.MaxCapacity,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.AgentViewFrom(agent)})
}

// Login POST /auth/agents/login. A successful login puts the agent back
// into the assignment rotation.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	agent, token, expiresAt, err := h.auths.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	actor := (&auth.Principal{Agent: agent}).Actor()
	if online, err := h.breaks.Login(c.UserContext(), agent.ID, actor); err == nil {
		agent = online
	}

	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Agent:     dto.AgentViewFrom(agent),
	}})
}

// ChangePassword POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.NewPassword == "" {
		return apperrors.NewValidationError("new_password required", nil)
	}

	if err := h.auths.ChangePassword(c.UserContext(), principal.Agent.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}
