package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// RateLimit throttles an operation per authenticated user, falling back to the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
				return fmt.Sprintf("%s:user:%d", identifier, userID)
			}
			return fmt.Sprintf("%s:ip:%s", identifier, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendErrorCode(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
		},
	})
}
