package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const correlationHeader = "X-Correlation-ID"

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// CorrelationID ensures every request carries a correlation identifier and exposes it on the user context.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get(correlationHeader))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals("correlation_id", incoming)
		c.Set(correlationHeader, incoming)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationKey, incoming))

		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// RequestLogger derives a logger tagged with the request's correlation identifier.
func RequestLogger(base zerolog.Logger, c *fiber.Ctx) zerolog.Logger {
	if correlation := GetCorrelationID(c); correlation != "" {
		return base.With().Str("correlation_id", correlation).Logger()
	}
	return base
}
