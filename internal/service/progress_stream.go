package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/dto"
)

const progressSubscriberBuffer = 16

// progressHub fans events out to live subscribers, keyed by enrollment.
type progressHub struct {
	mu          sync.RWMutex
	enrollments map[uint]map[*progressSubscriber]struct{}
	log         zerolog.Logger
}

type progressSubscriber struct {
	enrollmentID uint
	events       chan dto.ProgressEventResponse
	once         sync.Once
}

func newProgressHub(logger zerolog.Logger) *progressHub {
	return &progressHub{
		enrollments: make(map[uint]map[*progressSubscriber]struct{}),
		log:         logger.With().Str("component", "progress_hub").Logger(),
	}
}

func (h *progressHub) subscribe(enrollmentID uint) *progressSubscriber {
	subscriber := &progressSubscriber{
		enrollmentID: enrollmentID,
		events:       make(chan dto.ProgressEventResponse, progressSubscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.enrollments[enrollmentID]; !exists {
		h.enrollments[enrollmentID] = make(map[*progressSubscriber]struct{})
	}
	h.enrollments[enrollmentID][subscriber] = struct{}{}
	return subscriber
}

func (h *progressHub) unsubscribe(subscriber *progressSubscriber) {
	subscriber.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if subscribers, ok := h.enrollments[subscriber.enrollmentID]; ok {
			delete(subscribers, subscriber)
			if len(subscribers) == 0 {
				delete(h.enrollments, subscriber.enrollmentID)
			}
		}
		close(subscriber.events)
	})
}

func (h *progressHub) broadcast(event dto.ProgressEventResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriber := range h.enrollments[event.EnrollmentID] {
		select {
		case subscriber.events <- event:
		default:
			h.log.Warn().Uint("enrollment_id", event.EnrollmentID).Str("event_id", event.EventID).Msg("dropping progress event for slow subscriber")
		}
	}
}

// Subscribe registers a live listener for one enrollment. The returned cancel
// func must be called once the listener is done; it closes the channel.
func (s *progressEventService) Subscribe(enrollmentID uint) (<-chan dto.ProgressEventResponse, func()) {
	subscriber := s.hub.subscribe(enrollmentID)
	return subscriber.events, func() { s.hub.unsubscribe(subscriber) }
}

// Start consumes events published by other API instances so their subscribers
// on this node see them too. NATS is preferred when both brokers are set, since
// every event is published to both.
func (s *progressEventService) Start(ctx context.Context) {
	switch {
	case s.nats != nil && s.natsSubject != "":
		go s.consumeNATS(ctx)
	case s.redis != nil && s.redisChannel != "":
		go s.consumeRedis(ctx)
	}
}

func (s *progressEventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("progress redis subscription closed")
			return
		}
		s.handleRemote([]byte(msg.Payload))
	}
}

func (s *progressEventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleRemote(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats progress subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain progress nats subscription")
		}
	}()
}

func (s *progressEventService) handleRemote(data []byte) {
	var envelope progressEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid progress envelope")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.hub.broadcast(envelope.Event)
}
