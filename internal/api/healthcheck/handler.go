package healthcheck

import (
	"context"
	"time"

	"portfolio-rag/config"
	"portfolio-rag/pkg/apperror"

	"github.com/gofiber/fiber/v3"
)

// Pinger reports whether the vector store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func ApiHealthCheck(c fiber.Ctx) error {
	return c.SendString("ok")
}

func StoreHealthCheck(store Pinger) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return apperror.Fail(config.ModuleHealth, c, err, nil)
		}
		return c.SendString("ok")
	}
}
