package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-skills-api/internal/config"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthProbe checks a single backing dependency.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthCheck returns a handler that reports application health information.
// A failing probe turns the response into a 503 with status "degraded".
func HealthCheck(cfg config.Config, probes ...HealthProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(probes) > 0 {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()

			payload.Dependencies = make(map[string]string, len(probes))
			for _, probe := range probes {
				if probe.Check == nil {
					continue
				}
				if err := probe.Check(ctx); err != nil {
					payload.Dependencies[probe.Name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Dependencies[probe.Name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
