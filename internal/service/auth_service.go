package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-engine/internal/auth"
	"github.com/spec-kit/support-engine/internal/config"
	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/repository"
	apperrors "github.com/spec-kit/support-engine/pkg/util"
)

// AuthService coordinates agent registration and login flows.
type AuthService struct {
	agents     repository.AgentRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	defaultCap int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AgentRepo repository.AgentRepository
}

// AgentRegisterInput describes a new operator account.
type AgentRegisterInput struct {
	Name        string
	Email       string
	Password    string
	Role        domain.AgentRole
	MaxCapacity int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		agents:     deps.AgentRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		defaultCap: cfg.Engine.DefaultMaxCapacity,
	}
}

// RegisterAgent creates a new operator account. Capacity defaults to the
// configured engine value when unset.
func (s *AuthService) RegisterAgent(ctx context.Context, input AgentRegisterInput) (*domain.Agent, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}
	if _, err := s.agents.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewValidationError("email already registered",
			map[string]any{"email": email})
	} else if err != pgx.ErrNoRows {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	agent := &domain.Agent{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		MaxCapacity:  input.MaxCapacity,
		Status:       domain.AgentStatusOffline,
		Active:       true,
	}
	if agent.Role == "" {
		agent.Role = domain.RoleAgent
	}
	if agent.MaxCapacity <= 0 {
		agent.MaxCapacity = s.defaultCap
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// Login authenticates an agent and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Agent, string, time.Time, error) {
	agent, err := s.agents.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !agent.Active {
		return nil, "", time.Time{}, apperrors.NewForbidden("agent deactivated")
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(agent.ID, agent.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return agent, token, exp, nil
}

// ChangePassword verifies the current password before updating.
func (s *AuthService) ChangePassword(ctx context.Context, agentID, currentPassword, newPassword string) error {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(agent.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	agent.PasswordHash = hash
	if err := s.agents.Update(ctx, agent); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
