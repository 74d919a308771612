// Package main provides the entry point for the Pagelens server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/dispatch"
	"github.com/pagelens/pagelens/internal/extract"
	"github.com/pagelens/pagelens/internal/viewer"
	"github.com/pagelens/pagelens/pkg/logging"
	"github.com/pagelens/pagelens/pkg/ocr"
)

func main() {
	cfg := config.Load()

	if err := logging.SetupLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	// Probe which OCR engines are usable on this host. The registry is
	// fixed for the process lifetime.
	registry := ocr.NewRegistry(context.Background(), ocr.DefaultCandidates(
		cfg.OCR.Language,
		cfg.OCR.OllamaModel,
		cfg.OCR.OllamaServerURL,
	)...)
	if _, ok := registry.Default(); !ok {
		log.Fatal().Msg("No OCR engine is usable on this host")
	}
	log.Info().
		Interface("engines", registry.Available()).
		Msg("OCR engines detected")

	adapter := ocr.NewAdapter(registry)
	defer adapter.Close()

	metrics := dispatch.NewCollector()
	dispatcher := dispatch.NewDispatcher(adapter, metrics)

	// Session events are fanned out through the bus; the server itself
	// just observes and logs them.
	bus := viewer.NewEventBus(256, 2)
	defer bus.Close()
	bus.Subscribe(nil, func(ctx context.Context, event *viewer.SessionEvent) error {
		log.Debug().
			Str("event_type", string(event.Type)).
			Str("session_id", event.SessionID).
			Interface("metadata", event.Metadata).
			Msg("Session event")
		return nil
	})

	manager := viewer.NewManager(bus)
	defer manager.CloseAll()

	handlers := api.NewHandlers(manager, registry, dispatcher, extract.NewTextLayerExtractor(), cfg.Upload)

	// Initialize Fiber app with configuration
	app := fiber.New(fiber.Config{
		AppName:               "Pagelens API",
		BodyLimit:             int(cfg.Upload.MaxFileSize) + 1024*1024,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: false,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "UTC",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	api.SetupRoutes(app, handlers)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("Starting Pagelens server")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
