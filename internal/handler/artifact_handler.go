package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/service"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// ArtifactHandler accepts project artifact uploads.
type ArtifactHandler struct {
	service service.ArtifactService
	logger  zerolog.Logger
}

// NewArtifactHandler builds an artifact handler instance.
func NewArtifactHandler(service service.ArtifactService, logger zerolog.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		service: service,
		logger:  logger.With().Str("component", "artifact_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ArtifactHandler) Register(router fiber.Router) {
	limiter := middleware.RateLimit("skills_uploads", 10, time.Minute)
	router.Post("", limiter, middleware.WithAuth(h.upload, middleware.AuthOptions{RequireUser: true}))
}

func (h *ArtifactHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "artifact_missing", "file is required")
	}

	artifact, err := h.service.Upload(c.UserContext(), actorFromContext(c), file)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "artifact uploaded", artifact)
}
