package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[normalizeRoleValue(c.Locals("user_role"))]; !ok {
			return utils.SendErrorCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
