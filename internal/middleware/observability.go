package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/observability"
)

// Observability records Prometheus metrics and structured latency logs for API routes.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		if !strings.HasPrefix(c.Path(), "/api/") {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		if err != nil {
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		requestLogger := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration)).
			Logger()

		switch {
		case status >= fiber.StatusInternalServerError:
			requestLogger.Error().Msg("request failed")
		case status >= fiber.StatusBadRequest:
			requestLogger.Warn().Msg("request completed with client error")
		default:
			requestLogger.Info().Msg("request completed")
		}

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 25*time.Millisecond:
		return "<=25ms"
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= time.Second:
		return "<=1s"
	default:
		return ">1s"
	}
}
