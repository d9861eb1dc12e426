package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// ProviderConfig holds connection details for the OpenAI-compatible
// embedding and chat completion endpoints.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	BatchSize      int    `yaml:"batch_size"`
}

// RetrievalConfig configures the document-to-context pipeline.
type RetrievalConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

// GenerationConfig configures answer generation.
type GenerationConfig struct {
	Temperature       float64 `yaml:"temperature"`
	MaxResponseTokens int     `yaml:"max_response_tokens"`
	HistoryExchanges  int     `yaml:"history_exchanges"`
}

type Config struct {
	ServerAddr string           `yaml:"server_addr"`
	Provider   ProviderConfig   `yaml:"provider"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
}

// Load reads a config from path. A missing file yields the defaults, so the
// CLI works without any config on disk. Defaults are seeded before
// unmarshalling: keys absent from the file keep them, while values written
// explicitly win even when they are zero (chunk_overlap: 0, temperature: 0).
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIKey resolves the provider key from the configured environment variable.
func (p *ProviderConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// Validate checks every recognized option once, at pipeline construction
// time. Chunk geometry is re-checked by the chunker itself.
func (c *Config) Validate() error {
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalid, c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalid, c.Retrieval.ChunkOverlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be > 0, got %d", ErrInvalid, c.Retrieval.TopK)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0, 2], got %v", ErrInvalid, c.Generation.Temperature)
	}
	if c.Generation.MaxResponseTokens <= 0 {
		return fmt.Errorf("%w: max_response_tokens must be > 0, got %d", ErrInvalid, c.Generation.MaxResponseTokens)
	}
	return nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Provider.EmbeddingModel == "" {
		cfg.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.Provider.BatchSize == 0 {
		cfg.Provider.BatchSize = 32
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 1000
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.1
	}
	if cfg.Generation.MaxResponseTokens == 0 {
		cfg.Generation.MaxResponseTokens = 500
	}
	if cfg.Generation.HistoryExchanges == 0 {
		cfg.Generation.HistoryExchanges = 2
	}
}
