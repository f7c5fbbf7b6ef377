package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/service"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// EnrollmentHandler exposes the per-enrollment progression endpoints.
type EnrollmentHandler struct {
	service  service.EnrollmentService
	projects service.ProjectService
	logger   zerolog.Logger
}

// NewEnrollmentHandler builds an enrollment handler instance.
func NewEnrollmentHandler(service service.EnrollmentService, projects service.ProjectService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service:  service,
		projects: projects,
		logger:   logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	member := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}
	faculty := middleware.AuthOptions{Role: middleware.AuthRoleFaculty}
	submissions := middleware.RateLimit("skills_submissions", 30, time.Minute)

	router.Get("/:id/progress", middleware.WithAuth(h.progress, member))
	router.Post("/:id/rounds/1/complete", middleware.WithAuth(h.completeRound1, member))
	router.Post("/:id/quizzes/:round", submissions, middleware.WithAuth(h.submitQuiz, member))
	router.Post("/:id/projects", submissions, middleware.WithAuth(h.submitProject, member))
	router.Get("/:id/projects", middleware.WithAuth(h.listSubmissions, member))
	router.Get("/:id/events", middleware.WithAuth(h.listEvents, member))
	router.Delete("/:id", middleware.WithAuth(h.unenroll, faculty))
}

func (h *EnrollmentHandler) progress(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	progress, err := h.service.GetProgress(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *EnrollmentHandler) completeRound1(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	enrollment, err := h.service.CompleteRound1(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "round completed", enrollment)
}

func (h *EnrollmentHandler) submitQuiz(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	round, err := parseIntParam(c, "round")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.QuizSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.service.SubmitQuiz(c.UserContext(), actorFromContext(c), id, round, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message := "quiz not passed"
	if result.Passed {
		message = "quiz passed"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *EnrollmentHandler) submitProject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.ProjectSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	submission, err := h.projects.SubmitProject(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project submitted", submission)
}

func (h *EnrollmentHandler) listSubmissions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	submissions, err := h.projects.ListSubmissions(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *EnrollmentHandler) listEvents(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	events, err := h.service.ListEvents(c.UserContext(), actorFromContext(c), id, limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "events retrieved", events)
}

func (h *EnrollmentHandler) unenroll(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.Unenroll(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollment removed", nil)
}
