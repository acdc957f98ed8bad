package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rayhq/docuchat/internal/observability"
	"github.com/rayhq/docuchat/internal/tracing"
)

// Insert persists a fragment and its vector. An empty EmbeddingID is
// assigned automatically; inserting an explicit EmbeddingID that already
// exists fails with ErrConflict. Returns the embedding ID.
func (s *Store) Insert(ctx context.Context, frag Fragment) (string, error) {
	if len(frag.Vector) != s.dimension {
		return "", fmt.Errorf("insert vector has length %d, store dimension is %d: %w",
			len(frag.Vector), s.dimension, ErrDimensionMismatch)
	}

	embeddingID := frag.EmbeddingID
	if embeddingID == "" {
		embeddingID = uuid.New().String()
	}

	metadataJSON, err := json.Marshal(frag.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if frag.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	vectorJSON, err := json.Marshal(frag.Vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vector: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO fragments (embedding_id, document_id, text, metadata, chunk_index) VALUES (?, ?, ?, ?, ?)",
		embeddingID, frag.DocumentID, frag.Text, string(metadataJSON), frag.ChunkIndex,
	)
	if err != nil {
		if isConstraintErr(err) {
			if strings.Contains(err.Error(), "chunk_index") {
				return "", fmt.Errorf("document %s chunk %d: %w", frag.DocumentID, frag.ChunkIndex, ErrConflict)
			}
			return "", fmt.Errorf("embedding id %s: %w", embeddingID, ErrConflict)
		}
		return "", fmt.Errorf("failed to insert fragment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO fragment_vectors (embedding_id, embedding) VALUES (?, ?)",
		embeddingID, string(vectorJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert vector: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit fragment: %w", err)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Str("embedding_id", embeddingID).
		Str("document_id", frag.DocumentID).
		Int("chunk_index", frag.ChunkIndex).
		Msg("Fragment inserted")

	s.refreshFragmentGauge(ctx)

	return embeddingID, nil
}

// InsertBatch inserts fragments one by one. The batch is NOT atomic:
// on the first failure it stops and returns the error, leaving earlier
// inserts in place. Returns the assigned embedding IDs for the
// fragments that made it in.
func (s *Store) InsertBatch(ctx context.Context, frags []Fragment) ([]string, error) {
	ids := make([]string, 0, len(frags))
	for i, frag := range frags {
		id, err := s.Insert(ctx, frag)
		if err != nil {
			return ids, fmt.Errorf("fragment %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteByDocument removes every fragment belonging to documentID.
// Deleting an already-empty set succeeds. Returns the number of
// fragments removed.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM fragment_vectors WHERE embedding_id IN (SELECT embedding_id FROM fragments WHERE document_id = ?)",
		documentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM fragments WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fragments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	n, _ := res.RowsAffected()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("document_id", documentID).
		Int64("fragments", n).
		Msg("Fragments deleted")

	s.refreshFragmentGauge(ctx)

	return int(n), nil
}

// CountByDocument returns the number of fragments stored for documentID.
func (s *Store) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fragments WHERE document_id = ?", documentID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count fragments: %w", err)
	}
	return n, nil
}

// FragmentsByDocument returns the stored fragments for documentID in
// chunk order, without their vectors.
func (s *Store) FragmentsByDocument(ctx context.Context, documentID string) ([]Fragment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT embedding_id, document_id, text, metadata, chunk_index FROM fragments WHERE document_id = ? ORDER BY chunk_index",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer rows.Close()

	var frags []Fragment
	for rows.Next() {
		var frag Fragment
		var metadataJSON string
		if err := rows.Scan(&frag.EmbeddingID, &frag.DocumentID, &frag.Text, &metadataJSON, &frag.ChunkIndex); err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		frag.Metadata = parseMetadata(s, metadataJSON)
		frags = append(frags, frag)
	}
	return frags, rows.Err()
}

// Search returns fragments whose similarity to queryVector is at least
// minScore, most similar first, at most maxResults entries. Similarity
// is 1 - cosine distance; a score exactly equal to minScore is kept.
func (s *Store) Search(ctx context.Context, queryVector []float32, maxResults int, minScore float64) ([]Match, error) {
	return s.search(ctx, "", queryVector, maxResults, minScore)
}

// SearchInDocument is Search restricted to a single document.
func (s *Store) SearchInDocument(ctx context.Context, documentID string, queryVector []float32, maxResults int, minScore float64) ([]Match, error) {
	return s.search(ctx, documentID, queryVector, maxResults, minScore)
}

func (s *Store) search(ctx context.Context, documentID string, queryVector []float32, maxResults int, minScore float64) ([]Match, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector has length %d, store dimension is %d: %w",
			len(queryVector), s.dimension, ErrDimensionMismatch)
	}
	if maxResults <= 0 {
		return []Match{}, nil
	}

	start := time.Now()
	defer func() {
		observability.RecordSearch(time.Since(start))
	}()

	vectorJSON, err := json.Marshal(queryVector)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query vector: %w", err)
	}

	// Ties on score resolve by rowid, i.e. storage order, so repeated
	// queries return a stable ordering.
	query := `
		SELECT embedding_id, document_id, text, metadata, chunk_index, score FROM (
			SELECT
				f.embedding_id AS embedding_id,
				f.document_id AS document_id,
				f.text AS text,
				f.metadata AS metadata,
				f.chunk_index AS chunk_index,
				f.rowid AS frow,
				1.0 - vec_distance_cosine(v.embedding, ?) AS score
			FROM fragments f
			JOIN fragment_vectors v ON v.embedding_id = f.embedding_id
			%s
		)
		WHERE score >= ?
		ORDER BY score DESC, frow ASC
		LIMIT ?
	`

	args := []interface{}{string(vectorJSON)}
	filter := ""
	if documentID != "" {
		filter = "WHERE f.document_id = ?"
		args = append(args, documentID)
	}
	args = append(args, minScore, maxResults)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(query, filter), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		var metadataJSON string
		if err := rows.Scan(&m.EmbeddingID, &m.DocumentID, &m.Text, &metadataJSON, &m.ChunkIndex, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Metadata = parseMetadata(s, metadataJSON)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Int("results", len(matches)).
		Int("max_results", maxResults).
		Float64("min_score", minScore).
		Msg("Search completed")

	return matches, nil
}

// refreshFragmentGauge updates the fragment count metric; best effort.
func (s *Store) refreshFragmentGauge(ctx context.Context) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fragments").Scan(&n); err == nil {
		observability.SetFragmentCount(n)
	}
}

func parseMetadata(s *Store, metadataJSON string) map[string]interface{} {
	if metadataJSON == "" || metadataJSON == "{}" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(metadataJSON), &m); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse fragment metadata")
		return nil
	}
	return m
}
