package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/triage-service/internal/domain"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

// RequireStaff ensures a session is attached.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := SessionFromContext(c); !ok {
			return apperrors.NewUnauthorized("staff session required")
		}
		return c.Next()
	}
}

// RequireRole ensures the session has one of the allowed roles.
func RequireRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("staff session required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[session.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the session belongs to an administrator.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.StaffRoleAdmin)
}
