// Package session drives the document-to-context pipeline for one uploaded
// document and its conversation: extract, chunk, embed, index on upload;
// embed, search, generate on each question.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docchat/internal/answer"
	"docchat/internal/chunk"
	"docchat/internal/config"
	"docchat/internal/extract"
	"docchat/internal/index"
)

// ErrNotReady is returned when a question arrives before a document has
// been loaded.
var ErrNotReady = errors.New("no document loaded")

// State of a session. A failed load leaves Empty; a failed question leaves
// Ready with the history unchanged.
type State string

const (
	StateEmpty     State = "empty"
	StateReady     State = "ready"
	StateAnswering State = "answering"
)

// Embedder produces corpus and query vectors. *embed.Service implements it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Generator produces an answer from retrieved context. *answer.Generator
// implements it.
type Generator interface {
	Generate(ctx context.Context, history []answer.Turn, query string, chunks []chunk.Chunk) (*answer.Answer, error)
}

// Extractor converts document bytes into plain text.
type Extractor interface {
	Extract(data []byte, format extract.Format) (string, error)
}

type extractorFunc func(data []byte, format extract.Format) (string, error)

func (f extractorFunc) Extract(data []byte, format extract.Format) (string, error) {
	return f(data, format)
}

// DocumentStats summarizes the loaded document for display.
type DocumentStats struct {
	Filename     string `json:"filename"`
	Characters   int    `json:"characters"`
	Words        int    `json:"words"`
	Chunks       int    `json:"chunks"`
	AvgChunkSize int    `json:"avg_chunk_size"`
}

// Session owns the vector index and conversation history for a single
// document. Sessions share nothing with each other, and each user action is
// a synchronous pipeline invocation, so a session carries no lock.
type Session struct {
	ID string

	cfg       *config.Config
	extractor Extractor
	chunker   *chunk.Chunker
	embedder  Embedder
	generator Generator

	state   State
	idx     *index.Index
	stats   *DocumentStats
	history []answer.Turn
}

// New builds an empty session. The chunk geometry is validated here, before
// any document is accepted.
func New(cfg *config.Config, embedder Embedder, generator Generator) (*Session, error) {
	chunker, err := chunk.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.NewString(),
		cfg:       cfg,
		extractor: extractorFunc(extract.Extract),
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
		state:     StateEmpty,
	}, nil
}

// Load runs the build phase: extract, chunk, embed, index. Any failure
// discards partial work and leaves the session Empty; there is no partial
// indexing.
func (s *Session) Load(ctx context.Context, filename string, data []byte) error {
	s.reset()

	format, err := extract.ParseFormat(filename)
	if err != nil {
		return err
	}

	started := time.Now()
	text, err := s.extractor.Extract(data, format)
	if err != nil {
		return err
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no text extracted from %s", index.ErrEmpty, filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]index.Entry, len(chunks))
	for i := range chunks {
		entries[i] = index.Entry{Chunk: chunks[i], Vector: vectors[i]}
	}
	idx, err := index.Build(ctx, entries)
	if err != nil {
		return err
	}

	s.idx = idx
	s.stats = documentStats(filename, text, chunks)
	s.state = StateReady

	log.Info().
		Str("session", s.ID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Dur("took", time.Since(started)).
		Msg("document indexed")
	return nil
}

// Ask answers a question against the loaded document. topK <= 0 uses the
// configured retrieval count. A failed question leaves the session Ready
// and the history unchanged.
func (s *Session) Ask(ctx context.Context, query string, topK int) (answer.Turn, error) {
	if s.state != StateReady {
		return answer.Turn{}, ErrNotReady
	}
	if topK <= 0 {
		topK = s.cfg.Retrieval.TopK
	}

	s.state = StateAnswering
	defer func() { s.state = StateReady }()

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return answer.Turn{}, err
	}

	results, err := s.idx.Search(ctx, queryVector, topK)
	if err != nil {
		return answer.Turn{}, err
	}
	chunks := make([]chunk.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}

	ans, err := s.generator.Generate(ctx, s.history, query, chunks)
	if err != nil {
		return answer.Turn{}, err
	}

	turn := answer.Turn{Query: query, Sources: ans.Sources, Answer: ans.Text}
	s.history = append(s.history, turn)

	log.Debug().
		Str("session", s.ID).
		Int("retrieved", len(chunks)).
		Int("turns", len(s.history)).
		Msg("question answered")
	return turn, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// Stats returns statistics for the loaded document, or nil when Empty.
func (s *Session) Stats() *DocumentStats { return s.stats }

// History returns the conversation so far, oldest first.
func (s *Session) History() []answer.Turn {
	out := make([]answer.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Reset discards the index and conversation, returning the session to Empty.
func (s *Session) Reset() { s.reset() }

func (s *Session) reset() {
	s.state = StateEmpty
	s.idx = nil
	s.stats = nil
	s.history = nil
}

func documentStats(filename, text string, chunks []chunk.Chunk) *DocumentStats {
	stats := &DocumentStats{
		Filename:   filename,
		Characters: len([]rune(text)),
		Words:      len(strings.Fields(text)),
		Chunks:     len(chunks),
	}
	if len(chunks) > 0 {
		stats.AvgChunkSize = stats.Characters / len(chunks)
	}
	return stats
}
