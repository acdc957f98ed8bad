package store

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayhq/docuchat/internal/observability"
)

func TestInsert_AssignsEmbeddingID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, Fragment{
		DocumentID: "d1",
		Text:       "hello",
		Vector:     vec(1, 0, 0, 0),
		ChunkIndex: 0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestInsert_DuplicateEmbeddingIDConflicts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, Fragment{
		EmbeddingID: "E1",
		DocumentID:  "d1",
		Text:        "first",
		Vector:      vec(1, 0, 0, 0),
		ChunkIndex:  0,
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, Fragment{
		EmbeddingID: "E1",
		DocumentID:  "d2",
		Text:        "second",
		Vector:      vec(0, 1, 0, 0),
		ChunkIndex:  0,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "embedding id E1")

	// The first insert must be untouched
	n, err := s.CountByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsert_DuplicateChunkIndexConflicts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, Fragment{
		DocumentID: "d1",
		Text:       "first",
		Vector:     vec(1, 0, 0, 0),
		ChunkIndex: 0,
	})
	require.NoError(t, err)

	_, err = s.Insert(ctx, Fragment{
		DocumentID: "d1",
		Text:       "second",
		Vector:     vec(0, 1, 0, 0),
		ChunkIndex: 0,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "document d1 chunk 0")
	assert.NotContains(t, err.Error(), "embedding id")
}

func TestInsert_DimensionMismatch(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Insert(context.Background(), Fragment{
		DocumentID: "d1",
		Text:       "short vector",
		Vector:     vec(1, 0),
		ChunkIndex: 0,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestInsert_EmbeddingIDsUnique(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := s.Insert(ctx, Fragment{
			DocumentID: "d1",
			Text:       fmt.Sprintf("chunk %d", i),
			Vector:     vec(1, 0, 0, 0),
			ChunkIndex: i,
		})
		require.NoError(t, err)
		assert.False(t, seen[id], "embedding id %s assigned twice", id)
		seen[id] = true
	}
}

func TestInsertBatch_NotAtomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Second fragment collides with itself via an explicit duplicate id;
	// the first stays persisted.
	_, err := s.Insert(ctx, Fragment{
		EmbeddingID: "DUP",
		DocumentID:  "other",
		Text:        "occupies the id",
		Vector:      vec(0, 0, 1, 0),
		ChunkIndex:  0,
	})
	require.NoError(t, err)

	ids, err := s.InsertBatch(ctx, []Fragment{
		{DocumentID: "d1", Text: "a", Vector: vec(1, 0, 0, 0), ChunkIndex: 0},
		{EmbeddingID: "DUP", DocumentID: "d1", Text: "b", Vector: vec(0, 1, 0, 0), ChunkIndex: 1},
		{DocumentID: "d1", Text: "c", Vector: vec(0, 0, 1, 0), ChunkIndex: 2},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, ids, 1)

	n, err := s.CountByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteByDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, Fragment{
			DocumentID: "d1",
			Text:       fmt.Sprintf("chunk %d", i),
			Vector:     vec(1, 0, 0, 0),
			ChunkIndex: i,
		})
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, Fragment{
		DocumentID: "d2",
		Text:       "unrelated",
		Vector:     vec(0, 1, 0, 0),
		ChunkIndex: 0,
	})
	require.NoError(t, err)

	n, err := s.DeleteByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	remaining, err := s.CountByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	// Unrelated document untouched
	other, err := s.CountByDocument(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, 1, other)
}

func TestDeleteByDocument_Idempotent(t *testing.T) {
	s := createTestStore(t)

	n, err := s.DeleteByDocument(context.Background(), "never-existed")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFragmentsByDocument_ChunkOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of order on purpose
	for _, i := range []int{2, 0, 1} {
		_, err := s.Insert(ctx, Fragment{
			DocumentID: "d1",
			Text:       fmt.Sprintf("chunk %d", i),
			Vector:     vec(1, 0, 0, 0),
			ChunkIndex: i,
		})
		require.NoError(t, err)
	}

	frags, err := s.FragmentsByDocument(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, frags, 3)
	for i, frag := range frags {
		assert.Equal(t, i, frag.ChunkIndex)
		assert.Equal(t, fmt.Sprintf("chunk %d", i), frag.Text)
	}
}

func TestSearch_OrderAndThreshold(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// exact match, partial match, orthogonal
	_, err := s.Insert(ctx, Fragment{
		EmbeddingID: "exact", DocumentID: "d1", Text: "exact",
		Vector: vec(1, 0, 0, 0), ChunkIndex: 0,
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Fragment{
		EmbeddingID: "partial", DocumentID: "d1", Text: "partial",
		Vector: vec(1, 1, 0, 0), ChunkIndex: 1,
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Fragment{
		EmbeddingID: "orthogonal", DocumentID: "d1", Text: "orthogonal",
		Vector: vec(0, 1, 0, 0), ChunkIndex: 2,
	})
	require.NoError(t, err)

	matches, err := s.Search(ctx, vec(1, 0, 0, 0), 10, 0.0)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Descending score
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
	assert.Equal(t, "exact", matches[0].EmbeddingID)
	assert.Equal(t, "orthogonal", matches[2].EmbeddingID)

	// Boundary: orthogonal scores exactly 0.0 and minScore 0.0 keeps it
	assert.InDelta(t, 0.0, matches[2].Score, 1e-6)

	// Raising the threshold excludes it
	matches, err = s.Search(ctx, vec(1, 0, 0, 0), 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, 0.5)
	}
}

func TestSearch_MaxResults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, Fragment{
			DocumentID: "d1",
			Text:       fmt.Sprintf("chunk %d", i),
			Vector:     vec(1, 0, 0, 0),
			ChunkIndex: i,
		})
		require.NoError(t, err)
	}

	matches, err := s.Search(ctx, vec(1, 0, 0, 0), 2, 0.0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSearch_TiesAreStable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// All identical vectors: scores tie, storage order breaks the tie
	for i := 0; i < 4; i++ {
		_, err := s.Insert(ctx, Fragment{
			EmbeddingID: fmt.Sprintf("E%d", i),
			DocumentID:  "d1",
			Text:        fmt.Sprintf("chunk %d", i),
			Vector:      vec(1, 0, 0, 0),
			ChunkIndex:  i,
		})
		require.NoError(t, err)
	}

	first, err := s.Search(ctx, vec(1, 0, 0, 0), 4, 0.0)
	require.NoError(t, err)
	second, err := s.Search(ctx, vec(1, 0, 0, 0), 4, 0.0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "E0", first[0].EmbeddingID)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Search(context.Background(), vec(1, 0), 5, 0.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearchInDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, Fragment{
			DocumentID: "D1",
			Text:       fmt.Sprintf("d1 chunk %d", i),
			Vector:     vec(1, 0, 0, 0),
			ChunkIndex: i,
		})
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, Fragment{
		DocumentID: "D2",
		Text:       "other doc",
		Vector:     vec(1, 0, 0, 0),
		ChunkIndex: 0,
	})
	require.NoError(t, err)

	matches, err := s.SearchInDocument(ctx, "D1", vec(1, 0, 0, 0), 2, 0.0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
	for _, m := range matches {
		assert.Equal(t, "D1", m.DocumentID)
	}
}

func TestSearch_MetadataRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, Fragment{
		DocumentID: "d1",
		Text:       "with metadata",
		Vector:     vec(1, 0, 0, 0),
		ChunkIndex: 0,
		Metadata: map[string]interface{}{
			"fileName": "report.pdf",
			"page":     float64(3),
		},
	})
	require.NoError(t, err)

	matches, err := s.Search(ctx, vec(1, 0, 0, 0), 1, 0.0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "report.pdf", matches[0].Metadata["fileName"])
	assert.Equal(t, float64(3), matches[0].Metadata["page"])
}

func TestSearch_ConcurrentWithInserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	done := make(chan error, 2)

	go func() {
		for i := 0; i < 20; i++ {
			_, err := s.Insert(ctx, Fragment{
				DocumentID: "busy",
				Text:       fmt.Sprintf("chunk %d", i),
				Vector:     vec(1, 0, 0, 0),
				ChunkIndex: i,
			})
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	go func() {
		for i := 0; i < 20; i++ {
			// Read skew during a write burst is acceptable; errors are not.
			if _, err := s.Search(ctx, vec(1, 0, 0, 0), 5, 0.0); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-done)
	}
}

func TestFragmentGaugeTracksInsertAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, Fragment{
			DocumentID: "d1",
			Text:       fmt.Sprintf("chunk %d", i),
			Vector:     vec(1, 0, 0, 0),
			ChunkIndex: i,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, "3", scrapeMetric(t, "docuchat_fragments_total"))

	_, err := s.DeleteByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "0", scrapeMetric(t, "docuchat_fragments_total"))
}

func scrapeMetric(t *testing.T, name string) string {
	t.Helper()

	rec := httptest.NewRecorder()
	observability.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, name+" ") {
			return strings.TrimPrefix(line, name+" ")
		}
	}
	t.Fatalf("metric %s not found in scrape", name)
	return ""
}
