package ratelimit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"task-manager-api/internal/engine"
)

// Config of a fixed window limiter keyed by client IP.
type Config struct {
	Max     int
	Window  time.Duration
	Storage fiber.Storage // nil keeps counters in process memory
}

// New returns a limiter middleware answering 429 "Too Many Attempts." once a
// client exceeds Max requests in Window.
func New(cfg Config) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return engine.TooManyRequestsError()
		},
		Storage: cfg.Storage,
	})
}
