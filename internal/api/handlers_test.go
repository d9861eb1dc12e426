package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"docchat/internal/answer"
	"docchat/internal/chunk"
	"docchat/internal/config"
	"docchat/internal/session"
)

// countEmbedder is a deterministic embedder: vector of text length and
// vowel count, enough for the pipeline to run offline.
type countEmbedder struct{}

func (countEmbedder) embed(text string) []float32 {
	var vowels float32
	for _, r := range strings.ToLower(text) {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		}
	}
	return []float32{float32(len(text)), vowels + 1}
}

func (e countEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e countEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return e.embed(query), nil
}

type staticGenerator struct{}

func (staticGenerator) Generate(_ context.Context, _ []answer.Turn, _ string, chunks []chunk.Chunk) (*answer.Answer, error) {
	return &answer.Answer{Text: "**answer**", Sources: chunks}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Default()
	cfg.Retrieval.ChunkSize = 40
	cfg.Retrieval.ChunkOverlap = 10
	app := fiber.New()
	RegisterRoutes(app, session.NewManager(cfg, countEmbedder{}, staticGenerator{}))
	return app
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := do(t, app, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	decode(t, resp, &body)
	return body.SessionID
}

func do(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func uploadRequest(t *testing.T, id, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/document", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// minimalDOCX builds the smallest archive the docx reader accepts.
func minimalDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body.String() + `</w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"word/document.xml":            document,
		"word/_rels/document.xml.rels": rels,
	} {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("health body = %q", body)
	}
}

func TestUploadAskHistoryFlow(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app)

	docx := minimalDOCX(t, "The sky is blue.", "Grass is green.", "Water is wet.")
	resp := do(t, app, uploadRequest(t, id, "facts.docx", docx))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d: %s", resp.StatusCode, body)
	}
	var uploaded struct {
		State string `json:"state"`
		Stats struct {
			Chunks int `json:"chunks"`
		} `json:"stats"`
	}
	decode(t, resp, &uploaded)
	if uploaded.State != string(session.StateReady) || uploaded.Stats.Chunks == 0 {
		t.Fatalf("unexpected upload response: %+v", uploaded)
	}

	askBody := strings.NewReader(`{"query":"What color is grass?"}`)
	askReq := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/ask", askBody)
	askReq.Header.Set("Content-Type", "application/json")
	resp = do(t, app, askReq)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("ask status = %d: %s", resp.StatusCode, body)
	}
	var turn TurnResponse
	decode(t, resp, &turn)
	if turn.Answer != "**answer**" {
		t.Fatalf("answer = %q", turn.Answer)
	}
	if !strings.Contains(turn.AnswerHTML, "<strong>answer</strong>") {
		t.Fatalf("answer_html = %q, want rendered markdown", turn.AnswerHTML)
	}
	if len(turn.Sources) == 0 {
		t.Fatal("expected sources in ask response")
	}

	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/history", nil))
	var history struct {
		Turns []TurnResponse `json:"turns"`
	}
	decode(t, resp, &history)
	if len(history.Turns) != 1 || history.Turns[0].Query != "What color is grass?" {
		t.Fatalf("unexpected history: %+v", history.Turns)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app)

	resp := do(t, app, uploadRequest(t, id, "notes.txt", []byte("plain text")))
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("upload status = %d, want 415", resp.StatusCode)
	}

	// the failed build must leave the session empty
	resp = do(t, app, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/stats", nil))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stats status = %d, want 409", resp.StatusCode)
	}
}

func TestAskBeforeUpload(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app)

	askReq := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/ask", strings.NewReader(`{"query":"hello?"}`))
	askReq.Header.Set("Content-Type", "application/json")
	resp := do(t, app, askReq)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("ask status = %d, want 409", resp.StatusCode)
	}
}

func TestUnknownSession(t *testing.T) {
	app := newTestApp(t)
	resp := do(t, app, httptest.NewRequest(http.MethodGet, "/sessions/nope/history", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("history status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app)

	resp := do(t, app, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, app, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}
