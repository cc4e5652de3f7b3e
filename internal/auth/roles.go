package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-desk/internal/domain"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// RoleAuthorizer decides whether a session may act in a role.
type RoleAuthorizer interface {
	Authorize(session *domain.Session, role domain.Role) error
}

// RequireRole rejects requests whose session lacks the role.
func RequireRole(gate RoleAuthorizer, role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if err := gate.Authorize(session, role); err != nil {
			return err
		}
		return c.Next()
	}
}
