package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripplanner/internal/adapters/auth"
	"github.com/samirrijal/tripplanner/internal/core/domain"
)

const claimsKey = "claims"

// AuthMiddleware verifies a bearer token when one is present and stores the
// claims in locals. With required set, requests without a valid token are
// rejected.
func AuthMiddleware(deps *Dependencies, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			if required {
				return errUnauthorized(c, "missing bearer token")
			}
			return c.Next()
		}
		if deps.Users == nil {
			return errUnauthorized(c, "authentication not configured")
		}

		claims, err := deps.Users.Verify(token)
		if err != nil {
			if required {
				return errUnauthorized(c, "invalid token")
			}
			LoggerFromCtx(c.UserContext()).Debug("ignoring invalid bearer token", "error", err)
			return c.Next()
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// claimsFrom returns the verified claims, or nil for anonymous requests.
func claimsFrom(c *fiber.Ctx) *domain.TokenClaims {
	claims, _ := c.Locals(claimsKey).(*domain.TokenClaims)
	return claims
}
