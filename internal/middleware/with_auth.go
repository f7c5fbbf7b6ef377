package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// Auth role groups understood by WithAuth.
const (
	AuthRoleAny     = "any"
	AuthRoleFaculty = "faculty"
	AuthRoleStudent = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if requireUser && c.Locals("user_id") == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if !roleAllowed(role, normalizeRoleValue(c.Locals("user_role"))) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required_role": role})
		}

		return handler(c)
	}
}

func roleAllowed(required, current string) bool {
	switch required {
	case AuthRoleAny:
		return true
	case AuthRoleFaculty:
		return current == "teacher" || current == "admin"
	case AuthRoleStudent:
		return current == "student"
	default:
		return current == required
	}
}
