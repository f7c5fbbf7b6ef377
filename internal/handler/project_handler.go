package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/service"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// ProjectHandler exposes faculty review of project submissions.
type ProjectHandler struct {
	service service.ProjectService
	logger  zerolog.Logger
}

// NewProjectHandler builds a project handler instance.
func NewProjectHandler(service service.ProjectService, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		service: service,
		logger:  logger.With().Str("component", "project_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ProjectHandler) Register(router fiber.Router) {
	router.Patch("/:id/review", middleware.WithAuth(h.review, middleware.AuthOptions{Role: middleware.AuthRoleFaculty}))
}

func (h *ProjectHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.ProjectReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	submission, err := h.service.ReviewProject(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "project reviewed", submission)
}
