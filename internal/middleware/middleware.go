package middleware

import (
	"runtime/debug"
	"time"

	"portfolio-rag/config"
	"portfolio-rag/pkg/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// Setup installs recovery, request id, access log and the connection
// limiter, in that order.
func Setup(app *fiber.App, concurrency int) {
	app.Use(panicRecoveryMiddleware())
	app.Use(requestIDMiddleware())
	app.Use(accessLogMiddleware())
	app.Use(connectionLimiterMiddleware(NewConnectionLimiter(concurrency)))
}

// ConnectionLimiter limits the number of concurrent connections
type ConnectionLimiter struct {
	limit    int
	waitlist chan struct{}
}

func NewConnectionLimiter(limit int) *ConnectionLimiter {
	if limit < 1 {
		limit = 1
	}
	return &ConnectionLimiter{
		limit:    limit,
		waitlist: make(chan struct{}, limit),
	}
}

func (cl *ConnectionLimiter) Acquire() bool {
	select {
	case cl.waitlist <- struct{}{}:
		return true
	default:
		return false
	}
}

func (cl *ConnectionLimiter) Release() {
	select {
	case <-cl.waitlist:
	default:
	}
}

func connectionLimiterMiddleware(limiter *ConnectionLimiter) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !limiter.Acquire() {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Server is at maximum capacity")
		}
		defer limiter.Release()
		return c.Next()
	}
}

// requestIDMiddleware makes sure every request carries X-Request-ID; handlers
// echo it back as tracking_id.
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			c.Request().Header.Set("X-Request-ID", id)
		}
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}

func accessLogMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.For(config.ModuleServer).WithFields(map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency":    time.Since(start).String(),
			"request_id": c.Get("X-Request-ID"),
		}).Info("request")
		return err
	}
}

func panicRecoveryMiddleware() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.For(config.ModuleServer).WithFields(map[string]interface{}{
					"panic":      r,
					"method":     c.Method(),
					"path":       c.Path(),
					"ip":         c.IP(),
					"user_agent": c.Get("User-Agent"),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   "Internal Server Error",
					"message": "An unexpected error occurred",
				})
			}
		}()
		return c.Next()
	}
}
