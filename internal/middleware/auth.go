package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/justinnewbold/pattyshack-integrations/internal/apikeys"
)

// APIKeyAuth guards a route group with bearer API-key authentication. The
// validated key is stashed in locals under "api_key" for downstream
// handlers.
func APIKeyAuth(manager *apikeys.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		presented := c.Get("X-API-Key")
		if presented == "" {
			auth := c.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if presented == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing api key"})
		}

		result, err := manager.Validate(c.Context(), presented)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "authentication unavailable"})
		}
		if !result.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
		}

		c.Locals("api_key", result.Key)
		return c.Next()
	}
}
