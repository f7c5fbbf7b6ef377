package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger       *zerolog.Logger
	AllowOrigins []string
	// AccessLog enables the fiber access log, which is noisy in tests.
	AccessLog bool
}

// Register attaches the common middlewares used across the API.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	origins := "*"
	if len(cfg.AllowOrigins) > 0 {
		origins = strings.Join(cfg.AllowOrigins, ",")
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:correlation_id} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders: "X-Correlation-ID",
	}))
}
