// Package answer turns a query and its retrieved chunks into a natural
// language response from a hosted language model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"docchat/internal/chunk"
	"docchat/internal/config"
)

// ErrGeneration is returned when the generation provider fails. Calls are
// not retried.
var ErrGeneration = errors.New("generation error")

// Turn is one completed exchange: the query, the chunks retrieved for it
// and the generated answer.
type Turn struct {
	Query   string        `json:"query"`
	Sources []chunk.Chunk `json:"sources"`
	Answer  string        `json:"answer"`
}

// Answer is a generated response plus the chunks it was conditioned on, so
// callers can display provenance.
type Answer struct {
	Text    string
	Sources []chunk.Chunk
}

// Generator delegates to a hosted chat model with a low temperature and a
// bounded response length.
type Generator struct {
	model             llms.Model
	temperature       float64
	maxResponseTokens int
	historyExchanges  int
}

// NewOpenAI builds a generator against the configured chat endpoint.
func NewOpenAI(provider *config.ProviderConfig, gen *config.GenerationConfig) (*Generator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(provider.BaseURL),
		openai.WithToken(strings.TrimPrefix(provider.APIKey(), "Bearer ")),
		openai.WithModel(provider.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return NewWithModel(llm, gen), nil
}

// NewWithModel wraps an existing model, used by tests to inject fakes.
func NewWithModel(model llms.Model, gen *config.GenerationConfig) *Generator {
	return &Generator{
		model:             model,
		temperature:       gen.Temperature,
		maxResponseTokens: gen.MaxResponseTokens,
		historyExchanges:  gen.HistoryExchanges,
	}
}

// Generate asks the model to answer query using the retrieved chunks as
// context, preceded by the most recent conversation turns.
func (g *Generator) Generate(ctx context.Context, history []Turn, query string, chunks []chunk.Chunk) (*Answer, error) {
	messages := g.buildMessages(history, query, chunks)

	log.Debug().
		Int("messages", len(messages)).
		Int("context_chunks", len(chunks)).
		Msg("generating answer")

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxResponseTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: provider returned no choices", ErrGeneration)
	}

	return &Answer{
		Text:    strings.TrimSpace(resp.Choices[0].Content),
		Sources: chunks,
	}, nil
}

// buildMessages assembles system prompt, trimmed history and the final user
// prompt with the retrieved context ahead of the query.
func (g *Generator) buildMessages(history []Turn, query string, chunks []chunk.Chunk) []llms.MessageContent {
	messages := []llms.MessageContent{
		textMessage(schema.ChatMessageTypeSystem, systemPrompt),
	}
	for _, turn := range trimHistory(history, g.historyExchanges) {
		messages = append(messages,
			textMessage(schema.ChatMessageTypeHuman, turn.Query),
			textMessage(schema.ChatMessageTypeAI, turn.Answer),
		)
	}
	messages = append(messages, textMessage(schema.ChatMessageTypeHuman, userPrompt(query, chunks)))
	return messages
}

// trimHistory keeps the last n exchanges to bound prompt size.
func trimHistory(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func textMessage(role schema.ChatMessageType, text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  role,
		Parts: []llms.ContentPart{llms.TextContent{Text: text}},
	}
}
