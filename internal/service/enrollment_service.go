package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
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

// EnrollmentService drives enrollment lifecycle and the learn and quiz rounds.
type EnrollmentService interface {
	Enroll(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error)
	Unenroll(ctx context.Context, actor Actor, enrollmentID uint) error
	CompleteRound1(ctx context.Context, actor Actor, enrollmentID uint) (dto.EnrollmentResponse, error)
	SubmitQuiz(ctx context.Context, actor Actor, enrollmentID uint, round int, payload dto.QuizSubmitRequest) (dto.QuizResultResponse, error)
	GetProgress(ctx context.Context, actor Actor, enrollmentID uint) (dto.ProgressResponse, error)
	ListByCourse(ctx context.Context, actor Actor, courseID uint) ([]dto.EnrollmentResponse, error)
	ListEvents(ctx context.Context, actor Actor, enrollmentID uint, limit int) ([]dto.ProgressEventResponse, error)
}

type enrollmentService struct {
	runner    *progressionRunner
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(
	catalog CourseCatalog,
	enrollments repository.EnrollmentRepository,
	submissions repository.ProjectSubmissionRepository,
	events ProgressEventService,
	validate *validator.Validate,
	logger zerolog.Logger,
) EnrollmentService {
	componentLogger := logger.With().Str("component", "enrollment_service").Logger()

	return &enrollmentService{
		runner: &progressionRunner{
			catalog:     catalog,
			enrollments: enrollments,
			submissions: submissions,
			events:      events,
			logger:      componentLogger,
			now:         time.Now,
		},
		validator: validate,
		logger:    componentLogger,
		tracer:    otel.Tracer("github.com/noah-isme/gema-skills-api/internal/service/enrollment"),
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, actor Actor, courseID, studentID uint) (dto.EnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.enrollment.enroll", trace.WithAttributes(
		attribute.Int64("course.id", int64(courseID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if studentID == 0 {
		studentID = actor.ID
	}
	if !actor.IsFaculty() && studentID != actor.ID {
		span.SetStatus(codes.Error, "forbidden")
		return dto.EnrollmentResponse{}, progression.ErrForbidden
	}

	course, err := s.runner.catalog.Course(ctx, courseID)
	if err != nil {
		span.SetStatus(codes.Error, "course_lookup_failed")
		return dto.EnrollmentResponse{}, err
	}
	if !course.IsPublished() {
		span.SetStatus(codes.Error, "course_not_published")
		return dto.EnrollmentResponse{}, progression.ErrCourseNotPublished
	}

	if _, err := s.runner.enrollments.GetByCourseAndStudent(ctx, courseID, studentID); err == nil {
		span.SetStatus(codes.Error, "already_enrolled")
		return dto.EnrollmentResponse{}, progression.ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EnrollmentResponse{}, err
	}

	now := s.runner.now().UTC()
	enrollment := models.Enrollment{
		CourseID:  courseID,
		StudentID: studentID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.runner.enrollments.Create(ctx, &enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "already_enrolled")
			return dto.EnrollmentResponse{}, progression.ErrAlreadyEnrolled
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrollment_create_failed")
		return dto.EnrollmentResponse{}, err
	}

	s.runner.publish(ctx, actor, runOutcome{result: progression.Result{Event: progression.Event{
		Type:         progression.EventEnrollmentCreated,
		EnrollmentID: enrollment.ID,
		CourseID:     courseID,
		StudentID:    studentID,
		OccurredAt:   now,
	}}})

	s.logger.Info().
		Uint("enrollment_id", enrollment.ID).
		Uint("course_id", courseID).
		Uint("student_id", studentID).
		Msg("student enrolled")

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, actor Actor, enrollmentID uint) error {
	ctx, span := s.tracer.Start(ctx, "skills.enrollment.unenroll", trace.WithAttributes(
		attribute.Int64("enrollment.id", int64(enrollmentID)),
	))
	defer span.End()

	if !actor.IsFaculty() {
		span.SetStatus(codes.Error, "forbidden")
		return progression.ErrForbidden
	}

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		enrollment, err := s.runner.loadEnrollment(ctx, actor, enrollmentID)
		if err != nil {
			span.SetStatus(codes.Error, "enrollment_lookup_failed")
			return err
		}

		now := s.runner.now().UTC()
		lastErr = s.runner.enrollments.Delete(ctx, enrollment, now)
		if lastErr == nil {
			s.runner.publish(ctx, actor, runOutcome{result: progression.Result{Event: progression.Event{
				Type:         progression.EventEnrollmentRemoved,
				EnrollmentID: enrollment.ID,
				CourseID:     enrollment.CourseID,
				StudentID:    enrollment.StudentID,
				OccurredAt:   now,
			}}})
			s.logger.Info().Uint("enrollment_id", enrollmentID).Uint("actor_id", actor.ID).Msg("enrollment removed")
			return nil
		}
		if !errors.Is(lastErr, progression.ErrConcurrentModification) {
			span.RecordError(lastErr)
			return lastErr
		}
		observability.EnrollmentConflicts().WithLabelValues("unenroll").Inc()
	}

	span.SetStatus(codes.Error, "concurrent_modification")
	return lastErr
}

func (s *enrollmentService) CompleteRound1(ctx context.Context, actor Actor, enrollmentID uint) (dto.EnrollmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.enrollment.complete_round1", trace.WithAttributes(
		attribute.Int64("enrollment.id", int64(enrollmentID)),
	))
	defer span.End()

	outcome, err := s.runner.run(ctx, "complete_round1", actor, enrollmentID, func(context.Context, progression.State) (progression.Action, error) {
		return progression.Action{Kind: progression.ActionCompleteLearn}, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "complete_round1_failed")
		return dto.EnrollmentResponse{}, err
	}

	return dto.NewEnrollmentResponse(outcome.result.Enrollment), nil
}

func (s *enrollmentService) SubmitQuiz(ctx context.Context, actor Actor, enrollmentID uint, round int, payload dto.QuizSubmitRequest) (dto.QuizResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.enrollment.submit_quiz", trace.WithAttributes(
		attribute.Int64("enrollment.id", int64(enrollmentID)),
		attribute.Int("round.number", round),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.QuizResultResponse{}, fmt.Errorf("%w: %v", progression.ErrInvalidSubmission, err)
	}
	if round != 2 && round != 4 {
		span.SetStatus(codes.Error, "invalid_round")
		return dto.QuizResultResponse{}, fmt.Errorf("%w: quizzes are rounds 2 and 4", progression.ErrInvalidRound)
	}

	outcome, err := s.runner.run(ctx, "submit_quiz", actor, enrollmentID, func(context.Context, progression.State) (progression.Action, error) {
		return progression.Action{Kind: progression.ActionSubmitQuiz, Round: round, Answers: payload.Answers}, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "submit_quiz_failed")
		return dto.QuizResultResponse{}, err
	}

	result := outcome.result
	outcomeLabel := "failed"
	if result.Passed {
		outcomeLabel = "passed"
	}
	observability.QuizAttempts().WithLabelValues(strconv.Itoa(round), outcomeLabel).Inc()

	score := 0
	if result.Score != nil {
		score = *result.Score
	}
	span.SetAttributes(attribute.Int("quiz.score", score), attribute.Bool("quiz.passed", result.Passed))

	return dto.QuizResultResponse{
		Round:         round,
		Score:         score,
		Passed:        result.Passed,
		PassThreshold: outcome.state.Course.PassThreshold,
		Enrollment:    dto.NewEnrollmentResponse(result.Enrollment),
	}, nil
}

func (s *enrollmentService) GetProgress(ctx context.Context, actor Actor, enrollmentID uint) (dto.ProgressResponse, error) {
	enrollment, err := s.runner.loadEnrollment(ctx, actor, enrollmentID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	var active *models.ProjectSubmission
	if enrollment.ActiveSubmissionID != nil {
		submission, err := s.runner.submissions.GetByID(ctx, *enrollment.ActiveSubmissionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, err
		}
		if err == nil {
			active = &submission
		}
	}

	return dto.NewProgressResponse(enrollment, active), nil
}

func (s *enrollmentService) ListByCourse(ctx context.Context, actor Actor, courseID uint) ([]dto.EnrollmentResponse, error) {
	if !actor.IsFaculty() {
		return nil, progression.ErrForbidden
	}

	if _, err := s.runner.catalog.Course(ctx, courseID); err != nil {
		return nil, err
	}

	enrollments, err := s.runner.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return dto.NewEnrollmentResponseSlice(enrollments), nil
}

func (s *enrollmentService) ListEvents(ctx context.Context, actor Actor, enrollmentID uint, limit int) ([]dto.ProgressEventResponse, error) {
	if _, err := s.runner.loadEnrollment(ctx, actor, enrollmentID); err != nil {
		return nil, err
	}
	if s.runner.events == nil {
		return []dto.ProgressEventResponse{}, nil
	}

	return s.runner.events.List(ctx, enrollmentID, limit)
}
