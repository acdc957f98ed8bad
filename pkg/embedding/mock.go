package embedding

import (
	"context"
	"math"
)

// Mock generates deterministic unit-length embeddings from a text hash.
// The same text always maps to the same vector, distinct texts almost
// always differ, which is enough for offline use and tests.
type Mock struct {
	dimension int
}

// NewMock creates a mock embedding provider with the given dimension.
func NewMock(dimension int) *Mock {
	return &Mock{dimension: dimension}
}

func (p *Mock) Dimension() int {
	return p.dimension
}

func (p *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := uint64(14695981039346656037)
	for _, c := range text {
		hash ^= uint64(c)
		hash *= 1099511628211
	}

	vector := make([]float32, p.dimension)
	var norm float64
	state := hash
	for i := range vector {
		state = state*6364136223846793005 + 1442695040888963407
		vector[i] = float32(int64(state>>33)%1000) / 1000.0
		norm += float64(vector[i]) * float64(vector[i])
	}

	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}

	return vector, nil
}

func (p *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}
