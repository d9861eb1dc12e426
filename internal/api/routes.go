package api

import (
	"github.com/gofiber/fiber/v2"

	"docchat/internal/session"
)

func RegisterRoutes(app *fiber.App, sessions *session.Manager) {
	h := NewHandler(sessions)

	app.Get("/health", h.Health)
	app.Post("/sessions", h.CreateSession)
	app.Post("/sessions/:id/document", h.UploadDocument)
	app.Post("/sessions/:id/ask", h.Ask)
	app.Get("/sessions/:id/history", h.History)
	app.Get("/sessions/:id/stats", h.Stats)
	app.Delete("/sessions/:id", h.DeleteSession)
}
