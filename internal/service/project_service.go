package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/observability"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

// ProjectService handles round 3 submissions and their review.
type ProjectService interface {
	SubmitProject(ctx context.Context, actor Actor, enrollmentID uint, payload dto.ProjectSubmitRequest) (dto.ProjectSubmissionResponse, error)
	ReviewProject(ctx context.Context, actor Actor, submissionID uint, payload dto.ProjectReviewRequest) (dto.ProjectSubmissionResponse, error)
	ListSubmissions(ctx context.Context, actor Actor, enrollmentID uint) ([]dto.ProjectSubmissionResponse, error)
}

type projectService struct {
	runner    *progressionRunner
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewProjectService constructs the project workflow service.
func NewProjectService(
	catalog CourseCatalog,
	enrollments repository.EnrollmentRepository,
	submissions repository.ProjectSubmissionRepository,
	events ProgressEventService,
	validate *validator.Validate,
	logger zerolog.Logger,
) ProjectService {
	componentLogger := logger.With().Str("component", "project_service").Logger()

	return &projectService{
		runner: &progressionRunner{
			catalog:     catalog,
			enrollments: enrollments,
			submissions: submissions,
			events:      events,
			logger:      componentLogger,
			now:         time.Now,
		},
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    componentLogger,
		tracer:    otel.Tracer("github.com/noah-isme/gema-skills-api/internal/service/project"),
	}
}

func (s *projectService) SubmitProject(ctx context.Context, actor Actor, enrollmentID uint, payload dto.ProjectSubmitRequest) (dto.ProjectSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.project.submit", trace.WithAttributes(
		attribute.Int64("enrollment.id", int64(enrollmentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ProjectSubmissionResponse{}, err
	}

	description := s.sanitizer.Sanitize(payload.Description)
	outcome, err := s.runner.run(ctx, "submit_project", actor, enrollmentID, func(context.Context, progression.State) (progression.Action, error) {
		return progression.Action{
			Kind:        progression.ActionSubmitProject,
			FileRef:     payload.FileRef,
			Description: description,
		}, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "submit_project_failed")
		return dto.ProjectSubmissionResponse{}, err
	}

	submission := outcome.result.Submission
	span.SetAttributes(attribute.Int64("submission.id", int64(submission.ID)), attribute.Int("submission.attempt", submission.Attempt))
	s.logger.Info().
		Uint("enrollment_id", enrollmentID).
		Uint("submission_id", submission.ID).
		Int("attempt", submission.Attempt).
		Msg("project submitted")

	return dto.NewProjectSubmissionResponse(*submission, outcome.result.Enrollment.ActiveSubmissionID), nil
}

func (s *projectService) ReviewProject(ctx context.Context, actor Actor, submissionID uint, payload dto.ProjectReviewRequest) (dto.ProjectSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.project.review", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.String("review.status", payload.Status),
	))
	defer span.End()

	if !actor.IsFaculty() {
		span.SetStatus(codes.Error, "forbidden")
		return dto.ProjectSubmissionResponse{}, progression.ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ProjectSubmissionResponse{}, err
	}
	verdict, err := progression.ParseVerdict(payload.Status)
	if err != nil {
		span.SetStatus(codes.Error, "invalid_status")
		return dto.ProjectSubmissionResponse{}, err
	}

	target, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.ProjectSubmissionResponse{}, err
	}

	outcome, err := s.runner.run(ctx, "review_project", actor, target.EnrollmentID, func(ctx context.Context, _ progression.State) (progression.Action, error) {
		current, err := s.loadSubmission(ctx, submissionID)
		if err != nil {
			return progression.Action{}, err
		}
		return progression.Action{
			Kind:       progression.ActionReviewProject,
			Target:     &current,
			Verdict:    verdict,
			Feedback:   payload.Feedback,
			ReviewerID: actor.ID,
		}, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "review_project_failed")
		return dto.ProjectSubmissionResponse{}, err
	}

	if !outcome.result.Noop {
		observability.ProjectReviews().WithLabelValues(string(verdict)).Inc()
		s.logger.Info().
			Uint("submission_id", submissionID).
			Uint("reviewer_id", actor.ID).
			Str("status", string(verdict)).
			Msg("project reviewed")
	}

	return dto.NewProjectSubmissionResponse(*outcome.result.Submission, outcome.result.Enrollment.ActiveSubmissionID), nil
}

func (s *projectService) ListSubmissions(ctx context.Context, actor Actor, enrollmentID uint) ([]dto.ProjectSubmissionResponse, error) {
	enrollment, err := s.runner.loadEnrollment(ctx, actor, enrollmentID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.runner.submissions.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	return dto.NewProjectSubmissionResponseSlice(submissions, enrollment.ActiveSubmissionID), nil
}

func (s *projectService) loadSubmission(ctx context.Context, id uint) (models.ProjectSubmission, error) {
	submission, err := s.runner.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ProjectSubmission{}, progression.ErrSubmissionNotFound
		}
		return models.ProjectSubmission{}, err
	}
	return submission, nil
}
