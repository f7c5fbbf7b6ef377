package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/service"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

// CourseHandler exposes catalog authoring and browsing endpoints.
type CourseHandler struct {
	service     service.CourseService
	enrollments service.EnrollmentService
	logger      zerolog.Logger
}

// NewCourseHandler builds a course handler instance.
func NewCourseHandler(service service.CourseService, enrollments service.EnrollmentService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service:     service,
		enrollments: enrollments,
		logger:      logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *CourseHandler) Register(router fiber.Router) {
	faculty := middleware.AuthOptions{Role: middleware.AuthRoleFaculty}
	anyone := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}

	router.Get("", middleware.WithAuth(h.list, anyone))
	router.Post("", middleware.WithAuth(h.create, faculty))
	router.Get("/:id", middleware.WithAuth(h.get, anyone))
	router.Patch("/:id", middleware.WithAuth(h.update, faculty))
	router.Put("/:id/rounds/:number", middleware.WithAuth(h.defineRound, faculty))
	router.Post("/:id/publish", middleware.WithAuth(h.publish, faculty))
	router.Get("/:id/enrollments", middleware.WithAuth(h.listEnrollments, faculty))
	router.Post("/:id/enrollments", middleware.WithAuth(h.enroll, anyone))
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	var query dto.CourseListRequest
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	result, err := h.service.List(c.UserContext(), actorFromContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.OK(c, result.Items, "courses retrieved", fiber.Map{
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
	})
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	course, err := h.service.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	course, err := h.service.Get(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	course, err := h.service.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) defineRound(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	number, err := parseIntParam(c, "number")
	if err != nil {
		return badRequest(c, err.Error())
	}

	body := c.Body()
	if !json.Valid(body) {
		return badRequest(c, "invalid request body")
	}

	round, err := h.service.DefineRound(c.UserContext(), actorFromContext(c), id, number, json.RawMessage(body))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "round defined", round)
}

func (h *CourseHandler) publish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	course, err := h.service.Publish(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course published", course)
}

func (h *CourseHandler) listEnrollments(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	enrollments, err := h.enrollments.ListByCourse(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}

type enrollRequest struct {
	StudentID uint `json:"student_id"`
}

func (h *CourseHandler) enroll(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload enrollRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	enrollment, err := h.enrollments.Enroll(c.UserContext(), actorFromContext(c), id, payload.StudentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
}
