package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"docchat/internal/chunk"
	"docchat/internal/config"
)

type fakeModel struct {
	response string
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{
		{Role: schema.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: prompt}}},
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func genConfig() *config.GenerationConfig {
	return &config.GenerationConfig{Temperature: 0.1, MaxResponseTokens: 500, HistoryExchanges: 2}
}

func messageText(m llms.MessageContent) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func TestGenerate_ContextAheadOfQuery(t *testing.T) {
	model := &fakeModel{response: "The grass is green."}
	g := NewWithModel(model, genConfig())

	chunks := []chunk.Chunk{
		{Text: "Grass is green.", Ordinal: 1},
		{Text: "Water is wet.", Ordinal: 2},
	}
	ans, err := g.Generate(context.Background(), nil, "What color is grass?", chunks)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ans.Text != "The grass is green." {
		t.Fatalf("unexpected answer %q", ans.Text)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected 2 sources passed through, got %d", len(ans.Sources))
	}

	if len(model.messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(model.messages))
	}
	if model.messages[0].Role != schema.ChatMessageTypeSystem {
		t.Fatalf("first message role = %v, want system", model.messages[0].Role)
	}
	user := messageText(model.messages[1])
	chunkIdx := strings.Index(user, "[Chunk 1]")
	queryIdx := strings.Index(user, "What color is grass?")
	if chunkIdx < 0 || queryIdx < 0 {
		t.Fatalf("user prompt missing context or query:\n%s", user)
	}
	if chunkIdx > queryIdx {
		t.Fatal("retrieved context must come before the query")
	}
	if !strings.Contains(user, "[Chunk 2]:\nWater is wet.") {
		t.Fatalf("user prompt missing second chunk:\n%s", user)
	}
}

func TestGenerate_NoContextPrompt(t *testing.T) {
	model := &fakeModel{response: "I cannot find information about that in the document"}
	g := NewWithModel(model, genConfig())

	if _, err := g.Generate(context.Background(), nil, "anything?", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	user := messageText(model.messages[len(model.messages)-1])
	if !strings.Contains(user, "No relevant context found") {
		t.Fatalf("expected no-context prompt, got:\n%s", user)
	}
}

func TestGenerate_HistoryTrimmed(t *testing.T) {
	model := &fakeModel{response: "ok"}
	g := NewWithModel(model, genConfig())

	history := []Turn{
		{Query: "q1", Answer: "a1"},
		{Query: "q2", Answer: "a2"},
		{Query: "q3", Answer: "a3"},
	}
	if _, err := g.Generate(context.Background(), history, "q4", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// system + 2 kept exchanges (2 messages each) + current question
	if len(model.messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(model.messages))
	}
	if got := messageText(model.messages[1]); got != "q2" {
		t.Fatalf("oldest kept exchange = %q, want q2", got)
	}
	if model.messages[2].Role != schema.ChatMessageTypeAI {
		t.Fatalf("history answer role = %v, want AI", model.messages[2].Role)
	}
	if got := messageText(model.messages[3]); got != "q3" {
		t.Fatalf("second kept exchange = %q, want q3", got)
	}
}

func TestGenerate_ProviderFailure(t *testing.T) {
	g := NewWithModel(&fakeModel{err: errors.New("503 overloaded")}, genConfig())
	_, err := g.Generate(context.Background(), nil, "q", nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("Generate = %v, want ErrGeneration", err)
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	g := NewWithModel(emptyChoicesModel{}, genConfig())
	_, err := g.Generate(context.Background(), nil, "q", nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("Generate = %v, want ErrGeneration", err)
	}
}

type emptyChoicesModel struct{}

func (emptyChoicesModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyChoicesModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}
