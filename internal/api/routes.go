package api

import "github.com/gofiber/fiber/v2"

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h *Handlers) {
	// Health check
	app.Get("/health", h.Health)

	// API v1 routes
	v1 := app.Group("/api/v1")

	// Engine routes
	v1.Get("/engines", h.ListEngines)

	// Session routes
	sessions := v1.Group("/sessions")
	sessions.Post("/", h.CreateSession)
	sessions.Get("/:id", h.GetSession)
	sessions.Delete("/:id", h.CloseSession)
	sessions.Get("/:id/page", h.GetPage)
	sessions.Post("/:id/pages/next", h.NextPage)
	sessions.Post("/:id/pages/prev", h.PrevPage)
	sessions.Post("/:id/zoom/in", h.ZoomIn)
	sessions.Post("/:id/zoom/out", h.ZoomOut)
	sessions.Post("/:id/engine", h.SelectEngine)
	sessions.Post("/:id/selection", h.UpdateSelection)
	sessions.Delete("/:id/selection", h.ClearSelection)
	sessions.Post("/:id/ocr/page", h.OCRPage)
	sessions.Post("/:id/ocr/selection", h.OCRSelection)
	sessions.Post("/:id/ocr/document", h.OCRDocument)
	sessions.Post("/:id/text-layer", h.ExtractTextLayer)
	sessions.Post("/:id/text/save", h.SaveText)

	// Stats routes
	stats := v1.Group("/stats")
	stats.Get("/ocr", h.OCRStats)

	// Root redirect
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Pagelens",
			"version": "0.1.0",
		})
	})
}
