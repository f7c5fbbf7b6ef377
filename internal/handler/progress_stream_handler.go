package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/observability"
	"github.com/noah-isme/gema-skills-api/internal/service"
	"github.com/noah-isme/gema-skills-api/internal/utils"
)

const streamKeepalive = 30 * time.Second

// streamMessage is one frame written to a progress stream client.
type streamMessage struct {
	Type     string                     `json:"type"`
	Progress *dto.ProgressResponse      `json:"progress,omitempty"`
	Event    *dto.ProgressEventResponse `json:"event,omitempty"`
}

// ProgressStreamHandler pushes live progression events for one enrollment over a websocket.
type ProgressStreamHandler struct {
	enrollments service.EnrollmentService
	events      service.ProgressEventService
	logger      zerolog.Logger
}

// NewProgressStreamHandler builds a progress stream handler.
func NewProgressStreamHandler(enrollments service.EnrollmentService, events service.ProgressEventService, logger zerolog.Logger) *ProgressStreamHandler {
	return &ProgressStreamHandler{
		enrollments: enrollments,
		events:      events,
		logger:      logger.With().Str("component", "progress_stream_handler").Logger(),
	}
}

// Register binds the stream route under the enrollments group.
func (h *ProgressStreamHandler) Register(router fiber.Router) {
	member := middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}
	router.Get("/:id/stream", middleware.WithAuth(h.authorize, member), websocket.New(h.serve))
}

// authorize resolves the caller's view of the enrollment before upgrading, so
// ownership failures are reported as normal HTTP errors.
func (h *ProgressStreamHandler) authorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendErrorCode(c, fiber.StatusUpgradeRequired, "upgrade_required", "websocket upgrade required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	progress, err := h.enrollments.GetProgress(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Locals("stream_enrollment_id", id)
	c.Locals("stream_snapshot", progress)
	return c.Next()
}

func (h *ProgressStreamHandler) serve(conn *websocket.Conn) {
	enrollmentID, _ := conn.Locals("stream_enrollment_id").(uint)
	snapshot, _ := conn.Locals("stream_snapshot").(dto.ProgressResponse)
	correlation, _ := conn.Locals("correlation_id").(string)
	logger := h.logger.With().
		Uint("enrollment_id", enrollmentID).
		Str("correlation_id", correlation).
		Logger()

	events, cancel := h.events.Subscribe(enrollmentID)
	defer cancel()

	observability.StreamConnections().Inc()
	defer observability.StreamConnections().Dec()

	logger.Debug().Msg("progress stream connected")
	defer logger.Debug().Msg("progress stream disconnected")

	if err := conn.WriteJSON(streamMessage{Type: "snapshot", Progress: &snapshot}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamKeepalive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(streamMessage{Type: "event", Event: &event}); err != nil {
				logger.Debug().Err(err).Msg("progress stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
