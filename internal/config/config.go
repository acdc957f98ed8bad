package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main docuchat configuration
type Config struct {
	// Embedding model
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Retrieval (similarity search) knobs
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// Chat model and session behavior
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Web search provider
	WebSearch WebSearchConfig `json:"web_search" mapstructure:"web_search"`

	// Document ingestion
	Ingest IngestConfig `json:"ingest" mapstructure:"ingest"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory (sqlite database lives here)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // openai, mock
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
}

// RetrievalConfig holds similarity search defaults
type RetrievalConfig struct {
	MaxResults int     `json:"max_results" mapstructure:"max_results"`
	MinScore   float64 `json:"min_score" mapstructure:"min_score"`
}

// ChatConfig holds conversational model configuration
type ChatConfig struct {
	Provider       string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey         string  `json:"api_key" mapstructure:"api_key"`
	Model          string  `json:"model" mapstructure:"model"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	MemoryWindow   int     `json:"memory_window" mapstructure:"memory_window"`
	MaxToolTurns   int     `json:"max_tool_turns" mapstructure:"max_tool_turns"`
	SessionMaxIdle int     `json:"session_max_idle_minutes" mapstructure:"session_max_idle_minutes"`
}

// WebSearchConfig holds web search provider configuration
type WebSearchConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	MaxResults int    `json:"max_results" mapstructure:"max_results"`
}

// IngestConfig holds document ingestion configuration
type IngestConfig struct {
	ChunkSize    int    `json:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap" mapstructure:"chunk_overlap"`
	InboxDir     string `json:"inbox_dir" mapstructure:"inbox_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Retrieval: RetrievalConfig{
			MaxResults: 5,
			MinScore:   0.5,
		},
		Chat: ChatConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0.2,
			MaxTokens:      4096,
			MemoryWindow:   40,
			MaxToolTurns:   10,
			SessionMaxIdle: 120,
		},
		WebSearch: WebSearchConfig{
			Enabled:    false,
			MaxResults: 5,
		},
		Ingest: IngestConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Embedding.APIKey != "" {
		masked.Embedding.APIKey = "***"
	}
	if masked.Chat.APIKey != "" {
		masked.Chat.APIKey = "***"
	}
	if masked.WebSearch.APIKey != "" {
		masked.WebSearch.APIKey = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.Provider != "openai" && c.Embedding.Provider != "mock" {
		return fmt.Errorf("invalid embedding provider %q (must be: openai, mock)", c.Embedding.Provider)
	}

	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval max_results must be positive, got %d", c.Retrieval.MaxResults)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval min_score must be in [0, 1], got %v", c.Retrieval.MinScore)
	}

	if c.Chat.Provider != "openai" && c.Chat.Provider != "anthropic" {
		return fmt.Errorf("invalid chat provider %q (must be: openai, anthropic)", c.Chat.Provider)
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("chat model cannot be empty")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("chat temperature must be in [0, 2], got %v", c.Chat.Temperature)
	}
	if c.Chat.MemoryWindow <= 0 {
		return fmt.Errorf("chat memory_window must be positive, got %d", c.Chat.MemoryWindow)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("ingest chunk_overlap cannot be negative, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}

	if c.WebSearch.Enabled && c.WebSearch.APIKey == "" {
		return fmt.Errorf("web search is enabled but api_key is empty")
	}
	if c.WebSearch.MaxResults <= 0 {
		return fmt.Errorf("web search max_results must be positive, got %d", c.WebSearch.MaxResults)
	}

	return nil
}
