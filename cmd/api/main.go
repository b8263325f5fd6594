package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-rag/config"
	"portfolio-rag/internal/api/healthcheck"
	"portfolio-rag/internal/api/ingest"
	"portfolio-rag/internal/api/upload"
	"portfolio-rag/internal/middleware"
	svc "portfolio-rag/internal/services/ingest"
	"portfolio-rag/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		logger.Error(err, "invalid configuration")
		os.Exit(2)
	}
	if err := logger.SetLevel(string(config.Cfg.LogLevel)); err != nil {
		logger.Warn("keeping default log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := svc.NewFromConfig(ctx)
	if err != nil {
		logger.Fatal(err, "pipeline setup failed")
	}
	defer pipeline.Close()

	app := fiber.New(fiber.Config{
		AppName:      config.Cfg.Server.AppName,
		BodyLimit:    config.Cfg.Server.BodyLimit,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	})
	middleware.Setup(app, config.Cfg.Server.Concurrency)

	// routes
	healthcheck.RegisterRoutes(app, pipeline)
	upload.RegisterRoutes(app)
	ingest.RegisterRoutes(app, pipeline)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := fmt.Sprintf(":%d", config.Cfg.Server.Port)
	if err := app.Listen(addr); err != nil {
		logger.Error(err, "server error")
	}
}
