package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/installer-orchestrator/internal/domain"
	apperrors "github.com/spec-kit/installer-orchestrator/pkg/util/errorutil"
)

// RequireRole ensures the principal carries one of the allowed roles.
func RequireRole(allowed ...domain.PlatformRole) fiber.Handler {
	allowedSet := make(map[domain.PlatformRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
