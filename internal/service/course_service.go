package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/observability"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

// CourseCatalog is the read side of the catalog used by the progression flows.
type CourseCatalog interface {
	Course(ctx context.Context, id uint) (models.Course, error)
}

// CourseService manages skill course authoring.
type CourseService interface {
	CourseCatalog
	Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error)
	List(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.CourseListResponse, error)
	DefineRound(ctx context.Context, actor Actor, courseID uint, number int, payload json.RawMessage) (dto.RoundResponse, error)
	Publish(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error)
}

type courseService struct {
	repo      repository.CourseRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	schemas   *roundSchemas
	validator *validator.Validate
	strict    *bluemonday.Policy
	lesson    *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewCourseService constructs the catalog service. cache may be nil.
func NewCourseService(repo repository.CourseRepository, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) (CourseService, error) {
	schemas, err := newRoundSchemas()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &courseService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  ttl,
		schemas:   schemas,
		validator: validate,
		strict:    bluemonday.StrictPolicy(),
		lesson:    bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "course_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-skills-api/internal/service/course"),
	}, nil
}

func courseCacheKey(id uint) string {
	return fmt.Sprintf("skills:course:%d", id)
}

func (s *courseService) Course(ctx context.Context, id uint) (models.Course, error) {
	key := courseCacheKey(id)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var course models.Course
			if unmarshalErr := json.Unmarshal(cached, &course); unmarshalErr == nil {
				observability.CatalogCacheLookups().WithLabelValues("hit").Inc()
				return course, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Uint("course_id", id).Msg("failed to read catalog cache")
		}
		observability.CatalogCacheLookups().WithLabelValues("miss").Inc()
	}

	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, progression.ErrCourseNotFound
		}
		return models.Course{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(course); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("course_id", id).Msg("failed to store catalog cache")
			}
		}
	}

	return course, nil
}

func (s *courseService) invalidate(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, courseCacheKey(id)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("course_id", id).Msg("failed to invalidate catalog cache")
	}
}

func (s *courseService) Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.course.create")
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Title:            strings.TrimSpace(s.strict.Sanitize(payload.Title)),
		ShortDescription: strings.TrimSpace(s.strict.Sanitize(payload.ShortDescription)),
		Category:         strings.TrimSpace(payload.Category),
		PassThreshold:    *payload.PassThreshold,
		Status:           models.CourseStatusDraft,
		AuthorID:         actor.ID,
	}
	if course.Title == "" {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CourseResponse{}, fmt.Errorf("%w: title is empty after sanitization", progression.ErrValidation)
	}

	if err := s.repo.Create(ctx, &course); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_create_failed")
		return dto.CourseResponse{}, err
	}

	span.SetAttributes(attribute.Int64("course.id", int64(course.ID)))
	s.logger.Info().Uint("course_id", course.ID).Uint("author_id", actor.ID).Msg("skill course created")

	return dto.NewCourseResponse(course, true), nil
}

func (s *courseService) Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.course.update")
	span.SetAttributes(attribute.Int64("course.id", int64(id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CourseResponse{}, err
	}

	course, err := s.load(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "course_lookup_failed")
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		title := strings.TrimSpace(s.strict.Sanitize(*payload.Title))
		if title == "" {
			return dto.CourseResponse{}, fmt.Errorf("%w: title is empty after sanitization", progression.ErrValidation)
		}
		course.Title = title
	}
	if payload.ShortDescription != nil {
		course.ShortDescription = strings.TrimSpace(s.strict.Sanitize(*payload.ShortDescription))
	}
	if payload.Category != nil {
		course.Category = strings.TrimSpace(*payload.Category)
	}
	if payload.PassThreshold != nil && *payload.PassThreshold != course.PassThreshold {
		// stored flags stay authoritative; the new threshold applies to later attempts
		s.logger.Info().
			Uint("course_id", id).
			Int("previous", course.PassThreshold).
			Int("threshold", *payload.PassThreshold).
			Msg("pass threshold changed")
		course.PassThreshold = *payload.PassThreshold
	}

	if err := s.repo.Update(ctx, &course); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_update_failed")
		return dto.CourseResponse{}, err
	}
	s.invalidate(ctx, id)

	return dto.NewCourseResponse(course, true), nil
}

func (s *courseService) Get(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error) {
	course, err := s.Course(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if !actor.IsFaculty() && !course.IsPublished() {
		return dto.CourseResponse{}, progression.ErrCourseNotFound
	}

	return dto.NewCourseResponse(course, actor.IsFaculty()), nil
}

func (s *courseService) List(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseListResponse{}, err
	}

	filter := repository.CourseFilter{
		Category: req.Category,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if filter.Page == 0 {
		filter.Page = 1
	}

	switch {
	case !actor.IsFaculty():
		published := models.CourseStatusPublished
		filter.Status = &published
	case req.Status != "":
		status := models.CourseStatus(req.Status)
		filter.Status = &status
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	items := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseResponse(course, actor.IsFaculty()))
	}

	return dto.CourseListResponse{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *courseService) DefineRound(ctx context.Context, actor Actor, courseID uint, number int, payload json.RawMessage) (dto.RoundResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.course.define_round")
	span.SetAttributes(
		attribute.Int64("course.id", int64(courseID)),
		attribute.Int("round.number", number),
	)
	defer span.End()

	if err := s.schemas.validate(number, payload); err != nil {
		span.SetStatus(codes.Error, "round_schema_failed")
		return dto.RoundResponse{}, err
	}

	content, err := progression.ParseRoundContent(number, payload)
	if err != nil {
		span.SetStatus(codes.Error, "round_content_invalid")
		return dto.RoundResponse{}, err
	}
	content = s.sanitizeContent(content)

	course, err := s.load(ctx, courseID)
	if err != nil {
		span.SetStatus(codes.Error, "course_lookup_failed")
		return dto.RoundResponse{}, err
	}

	if err := s.guardRecordedScores(ctx, course, number, content); err != nil {
		span.SetStatus(codes.Error, "course_locked")
		return dto.RoundResponse{}, err
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return dto.RoundResponse{}, err
	}

	round := models.Round{
		CourseID: courseID,
		Number:   number,
		Kind:     content.Kind(),
		Content:  datatypes.JSON(encoded),
	}
	if err := s.repo.UpsertRound(ctx, &round); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "round_upsert_failed")
		return dto.RoundResponse{}, err
	}
	s.invalidate(ctx, courseID)

	s.logger.Info().
		Uint("course_id", courseID).
		Int("round", number).
		Uint("actor_id", actor.ID).
		Msg("round defined")

	return dto.NewRoundResponse(number, content, true), nil
}

// guardRecordedScores rejects quiz redefinitions that would change how already
// recorded scores were computed.
func (s *courseService) guardRecordedScores(ctx context.Context, course models.Course, number int, content progression.RoundContent) error {
	quiz, ok := content.(progression.QuizContent)
	if !ok {
		return nil
	}
	existing, ok := course.Round(number)
	if !ok {
		return nil
	}
	previous, err := progression.DecodeRound(existing)
	if err != nil {
		return nil
	}
	if previousQuiz, ok := previous.(progression.QuizContent); ok && previousQuiz.SameAnswerKey(quiz) {
		return nil
	}

	scored, err := s.repo.CountScoredEnrollments(ctx, course.ID, number)
	if err != nil {
		return err
	}
	if scored > 0 {
		return fmt.Errorf("%w: %d enrollments scored on round %d", progression.ErrCourseLocked, scored, number)
	}
	return nil
}

func (s *courseService) sanitizeContent(content progression.RoundContent) progression.RoundContent {
	switch typed := content.(type) {
	case progression.LearnContent:
		typed.Body = strings.TrimSpace(s.lesson.Sanitize(typed.Body))
		typed.URL = strings.TrimSpace(typed.URL)
		return typed
	case progression.ProjectContent:
		typed.Brief = strings.TrimSpace(s.lesson.Sanitize(typed.Brief))
		for i, requirement := range typed.Requirements {
			typed.Requirements[i] = strings.TrimSpace(s.strict.Sanitize(requirement))
		}
		return typed
	default:
		return content
	}
}

func (s *courseService) Publish(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.course.publish")
	span.SetAttributes(attribute.Int64("course.id", int64(id)))
	defer span.End()

	course, err := s.load(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, "course_lookup_failed")
		return dto.CourseResponse{}, err
	}

	if course.IsPublished() {
		return dto.NewCourseResponse(course, true), nil
	}

	for number := 1; number <= models.RoundCount; number++ {
		if _, ok := course.Round(number); !ok {
			span.SetStatus(codes.Error, "course_incomplete")
			return dto.CourseResponse{}, fmt.Errorf("%w: round %d missing", progression.ErrCourseIncomplete, number)
		}
	}

	course.Status = models.CourseStatusPublished
	if err := s.repo.Update(ctx, &course); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_publish_failed")
		return dto.CourseResponse{}, err
	}
	s.invalidate(ctx, id)

	s.logger.Info().Uint("course_id", id).Uint("actor_id", actor.ID).Msg("skill course published")

	return dto.NewCourseResponse(course, true), nil
}

// load reads the course from the database, bypassing the cache, for writes.
func (s *courseService) load(ctx context.Context, id uint) (models.Course, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, progression.ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}
