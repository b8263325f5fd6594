package ingest

import (
	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router, runner Runner) {
	h := NewHandler(runner)
	r.Post("/ingest", h.HandleIngest)
}
