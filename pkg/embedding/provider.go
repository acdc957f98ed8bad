package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable indicates the embedding backend could not be reached
// or rejected the request. Callers treat it as retryable.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider generates vector embeddings from text. Implementations must
// return vectors of exactly Dimension() length.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// DimensionFor returns the native vector size of a known embedding
// model, or 0 for an unknown one.
func DimensionFor(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	default:
		return 0
	}
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
}

// New builds a provider from config. The "mock" provider needs no
// credentials and is meant for tests and offline use.
func New(cfg Config) (Provider, error) {
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = DimensionFor(cfg.Model)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("unknown embedding model %q and no explicit dimension", cfg.Model)
	}

	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("openai embedding provider requires an API key")
		}
		return NewOpenAI(cfg.APIKey, cfg.Model, dimension), nil
	case "mock":
		return NewMock(dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
