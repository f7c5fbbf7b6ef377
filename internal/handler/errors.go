package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/service"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Specific errors come before their categories.
var errorMappings = []errorMapping{
	{progression.ErrInvalidSubmission, fiber.StatusUnprocessableEntity, "invalid_submission"},
	{progression.ErrInvalidStatus, fiber.StatusBadRequest, "invalid_status"},
	{progression.ErrInvalidRound, fiber.StatusBadRequest, "invalid_round"},
	{progression.ErrInvalidRoundContent, fiber.StatusBadRequest, "invalid_round_content"},
	{progression.ErrCourseIncomplete, fiber.StatusUnprocessableEntity, "course_incomplete"},
	{progression.ErrValidation, fiber.StatusBadRequest, "validation_error"},

	{progression.ErrRoundLocked, fiber.StatusConflict, "round_locked"},
	{progression.ErrDuplicateSubmission, fiber.StatusConflict, "duplicate_submission"},
	{progression.ErrSubmissionAlreadyReviewed, fiber.StatusConflict, "submission_already_reviewed"},
	{progression.ErrCourseNotPublished, fiber.StatusConflict, "course_not_published"},
	{progression.ErrAlreadyEnrolled, fiber.StatusConflict, "already_enrolled"},
	{progression.ErrCourseLocked, fiber.StatusConflict, "course_locked"},
	{progression.ErrGatingViolation, fiber.StatusConflict, "gating_violation"},

	{progression.ErrConcurrencyConflict, fiber.StatusConflict, "concurrent_modification"},

	{progression.ErrCourseNotFound, fiber.StatusNotFound, "course_not_found"},
	{progression.ErrRoundNotDefined, fiber.StatusNotFound, "round_not_defined"},
	{progression.ErrEnrollmentNotFound, fiber.StatusNotFound, "enrollment_not_found"},
	{progression.ErrSubmissionNotFound, fiber.StatusNotFound, "submission_not_found"},
	{progression.ErrNotFound, fiber.StatusNotFound, "not_found"},

	{progression.ErrForbidden, fiber.StatusForbidden, "forbidden"},

	{service.ErrArtifactMissing, fiber.StatusBadRequest, "artifact_missing"},
	{service.ErrArtifactTooLarge, fiber.StatusRequestEntityTooLarge, "artifact_too_large"},
	{service.ErrArtifactTypeNotAllowed, fiber.StatusUnsupportedMediaType, "artifact_type_not_allowed"},
	{service.ErrArtifactScanFailed, fiber.StatusBadRequest, "artifact_scan_failed"},
}

// respondError translates service errors into the API envelope. Only unexpected
// failures are logged at error level.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "validation_error", validationErrors.Error())
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return utils.SendErrorCode(c, mapping.status, mapping.code, err.Error())
		}
	}

	requestLogger := middleware.RequestLogger(logger, c)
	requestLogger.Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendErrorCode(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorCode(c, fiber.StatusBadRequest, "bad_request", message)
}
