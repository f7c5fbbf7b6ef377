package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-skills-api/internal/config"
	"github.com/noah-isme/gema-skills-api/internal/handler"
	"github.com/noah-isme/gema-skills-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseHandler     *handler.CourseHandler
	EnrollmentHandler *handler.EnrollmentHandler
	ProjectHandler    *handler.ProjectHandler
	ArtifactHandler   *handler.ArtifactHandler
	StreamHandler     *handler.ProgressStreamHandler
	HealthProbes      []handler.HealthProbe
	JWTMiddleware     fiber.Handler
	MetricsHandler    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	skills := app.Group("/api/v2/skills", jwtMiddleware)

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(skills.Group("/courses"))
	}

	enrollments := skills.Group("/enrollments")
	if deps.EnrollmentHandler != nil {
		deps.EnrollmentHandler.Register(enrollments)
	}
	if deps.StreamHandler != nil {
		deps.StreamHandler.Register(enrollments)
	}

	if deps.ProjectHandler != nil {
		deps.ProjectHandler.Register(skills.Group("/projects"))
	}

	// Artifact uploads are only available when object storage is configured
	if deps.ArtifactHandler != nil {
		deps.ArtifactHandler.Register(skills.Group("/uploads", middleware.RequireRole("student")))
	}
}
