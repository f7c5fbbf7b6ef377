package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/models"
	"github.com/noah-isme/gema-skills-api/internal/observability"
	"github.com/noah-isme/gema-skills-api/internal/progression"
	"github.com/noah-isme/gema-skills-api/internal/repository"
)

// ProgressEventService records committed progression facts and fans them out to brokers.
type ProgressEventService interface {
	Publish(ctx context.Context, event progression.Event, actor Actor) (dto.ProgressEventResponse, error)
	List(ctx context.Context, enrollmentID uint, limit int) ([]dto.ProgressEventResponse, error)
	Subscribe(enrollmentID uint) (<-chan dto.ProgressEventResponse, func())
	Start(ctx context.Context)
}

type progressEventService struct {
	repo         repository.ProgressEventRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	nodeID       string
	hub          *progressHub
}

type progressEnvelope struct {
	Source string                    `json:"source"`
	Event  dto.ProgressEventResponse `json:"event"`
	SentAt time.Time                 `json:"sent_at"`
}

// NewProgressEventService constructs the event recorder. redisClient and natsConn may be nil.
func NewProgressEventService(repo repository.ProgressEventRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ProgressEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":progress"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".progress"
	}

	componentLogger := logger.With().Str("component", "progress_event_service").Logger()

	return &progressEventService{
		repo:         repo,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       componentLogger,
		tracer:       otel.Tracer("github.com/noah-isme/gema-skills-api/internal/service/progress_event"),
		nodeID:       uuid.NewString(),
		hub:          newProgressHub(componentLogger),
	}
}

func (s *progressEventService) Publish(ctx context.Context, event progression.Event, actor Actor) (dto.ProgressEventResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "skills.events.publish", trace.WithAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.Int64("enrollment.id", int64(event.EnrollmentID)),
	))
	defer span.End()

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	model := models.ProgressEvent{
		EventID:      uuid.NewString(),
		Type:         string(event.Type),
		EnrollmentID: event.EnrollmentID,
		CourseID:     event.CourseID,
		StudentID:    event.StudentID,
		Round:        event.Round,
		ActorID:      actor.ID,
		ActorRole:    normalizeRole(actor.Role),
		Metadata:     event.Metadata(),
		OccurredAt:   occurredAt,
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.ProgressEventResponse{}, err
	}

	response := dto.NewProgressEventResponse(model)
	s.hub.broadcast(response)
	if err := s.broadcast(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Str("event_id", model.EventID).Msg("failed to publish progress event to broker")
	}

	observability.EventsPublished().WithLabelValues(model.Type).Inc()

	return response, nil
}

func (s *progressEventService) List(ctx context.Context, enrollmentID uint, limit int) ([]dto.ProgressEventResponse, error) {
	if enrollmentID == 0 {
		return nil, errors.New("enrollment id is required")
	}

	events, err := s.repo.ListByEnrollment(ctx, enrollmentID, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewProgressEventResponseSlice(events), nil
}

func (s *progressEventService) broadcast(ctx context.Context, event dto.ProgressEventResponse) error {
	payload, err := json.Marshal(progressEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}
