package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-desk/internal/api/dto"
	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/service"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// AuthHandler exposes login, logout and session lookup.
type AuthHandler struct {
	gate *service.AccessGate
}

// NewAuthHandler constructs handler.
func NewAuthHandler(gate *service.AccessGate) *AuthHandler {
	return &AuthHandler{gate: gate}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" || req.Role == "" {
		return apperrors.NewValidationError("username, password, role required", nil)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return apperrors.NewValidationError("role must be Client or Support", map[string]any{"role": req.Role})
	}

	sess, token, err := h.gate.Login(c.UserContext(), req.Username, req.Password, role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{Token: token, Session: sessionResponse(sess)}})
}

// Logout handles POST /auth/logout. It succeeds whether or not a session exists.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c)
	if err == nil {
		if err := h.gate.Logout(c.UserContext(), token); err != nil {
			return err
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": sessionResponse(sess)})
}

func sessionResponse(sess *domain.Session) dto.SessionResponse {
	resp := dto.SessionResponse{
		Username: sess.Username,
		Role:     string(sess.Role),
		IssuedAt: sess.IssuedAt,
	}
	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}
