package api

import (
	"bytes"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"docchat/internal/answer"
	"docchat/internal/chunk"
	"docchat/internal/embed"
	"docchat/internal/extract"
	"docchat/internal/index"
	"docchat/internal/session"
)

// Handler holds the session registry behind the HTTP surface.
type Handler struct {
	sessions *session.Manager
	markdown goldmark.Markdown
}

func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{
		sessions: sessions,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(htmlrenderer.WithHardWraps()),
		),
	}
}

// AskRequest is the body of POST /sessions/:id/ask.
type AskRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

// TurnResponse is one conversation turn, with the answer additionally
// rendered to HTML for the UI.
type TurnResponse struct {
	Query      string        `json:"query"`
	Answer     string        `json:"answer"`
	AnswerHTML string        `json:"answer_html"`
	Sources    []chunk.Chunk `json:"sources"`
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// CreateSession registers a new empty session.
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	s, err := h.sessions.Create()
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": s.ID,
		"state":      s.State(),
	})
}

// UploadDocument runs the build phase on an uploaded PDF or DOCX file.
func (h *Handler) UploadDocument(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required (form field: file)"})
	}
	f, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to open upload"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read upload"})
	}

	if err := s.Load(c.Context(), file.Filename, data); err != nil {
		log.Error().Err(err).Str("session", s.ID).Str("filename", file.Filename).Msg("document load failed")
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"state": s.State(),
		"stats": s.Stats(),
	})
}

// Ask answers a question against the session's document.
func (h *Handler) Ask(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}

	var req AskRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request, expected JSON: {\"query\":\"...\"}"})
	}

	turn, err := s.Ask(c.Context(), req.Query, req.TopK)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("ask failed")
		return h.fail(c, err)
	}
	return c.JSON(h.renderTurn(turn))
}

// History returns the conversation so far, oldest first.
func (h *Handler) History(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	history := s.History()
	turns := make([]TurnResponse, len(history))
	for i, t := range history {
		turns[i] = h.renderTurn(t)
	}
	return c.JSON(fiber.Map{"state": s.State(), "turns": turns})
}

// Stats returns statistics for the loaded document.
func (h *Handler) Stats(c *fiber.Ctx) error {
	s, ok := h.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	if s.Stats() == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no document loaded"})
	}
	return c.JSON(s.Stats())
}

// DeleteSession removes a session and everything it owns.
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := h.sessions.Get(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	h.sessions.Delete(id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) renderTurn(t answer.Turn) TurnResponse {
	return TurnResponse{
		Query:      t.Query,
		Answer:     t.Answer,
		AnswerHTML: h.renderMarkdown(t.Answer),
		Sources:    t.Sources,
	}
}

// renderMarkdown converts the model's markdown-ish answer to HTML for the
// UI collaborator; on conversion failure the raw text is used as-is.
func (h *Handler) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return buf.String()
}

// fail maps pipeline errors to HTTP statuses: bad uploads and questions are
// the client's fault, provider failures are upstream's.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		status = fiber.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrUnreadable),
		errors.Is(err, chunk.ErrInvalidConfig),
		errors.Is(err, index.ErrEmpty):
		status = fiber.StatusBadRequest
	case errors.Is(err, session.ErrNotReady):
		status = fiber.StatusConflict
	case errors.Is(err, embed.ErrService), errors.Is(err, answer.ErrGeneration):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
