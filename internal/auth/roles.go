package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/domain"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

// RequireCapability ensures the caller's role carries every listed capability.
func RequireCapability(caps ...domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, capability := range caps {
			if !actor.Can(capability) {
				return apperrors.NewPermissionDenied("role lacks " + string(capability))
			}
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
