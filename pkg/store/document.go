package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rayhq/docuchat/internal/tracing"
)

// CreateDocument persists a new document in PROCESSING state with a
// zero fragment count. An empty ID is assigned automatically.
func (s *Store) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.StoredName == "" {
		doc.StoredName = uuid.New().String()
	}
	doc.Status = StatusProcessing
	doc.FragmentCount = 0

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, stored_name, original_name, doc_type, size_bytes, description, fragment_count, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		doc.ID, doc.StoredName, doc.OriginalName, doc.Type, doc.SizeBytes, doc.Description,
		doc.Status, now.Unix(), now.Unix(),
	)
	if err != nil {
		if isConstraintErr(err) {
			return Document{}, fmt.Errorf("document %s: %w", doc.ID, ErrConflict)
		}
		return Document{}, fmt.Errorf("failed to create document: %w", err)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("document_id", doc.ID).
		Str("name", doc.OriginalName).
		Str("type", doc.Type).
		Msg("Document created")

	return doc, nil
}

// GetDocument fetches one document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, stored_name, original_name, doc_type, size_bytes, description, fragment_count, status, created_at, updated_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stored_name, original_name, doc_type, size_bytes, description, fragment_count, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document row only. Fragments are NOT
// cascaded here; the ingestion pipeline deletes them explicitly first.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().Str("document_id", id).Msg("Document deleted")
	return nil
}

// MarkIndexed transitions a PROCESSING document to INDEXED and records
// the actual fragment count. The transition is terminal.
func (s *Store) MarkIndexed(ctx context.Context, id string, fragmentCount int) error {
	return s.finish(ctx, id, StatusIndexed, fragmentCount)
}

// MarkFailed transitions a PROCESSING document to FAILED. Terminal.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.finish(ctx, id, StatusFailed, 0)
}

func (s *Store) finish(ctx context.Context, id, status string, fragmentCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, fragment_count = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, fragmentCount, nowUnix(), id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		// Either the document is gone or it already reached a terminal
		// status; distinguish for the caller.
		var current string
		err := s.db.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check document status: %w", err)
		}
		return fmt.Errorf("document %s already %s: %w", id, current, ErrConflict)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("document_id", id).
		Str("status", status).
		Int("fragment_count", fragmentCount).
		Msg("Document status updated")

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var createdAt, updatedAt int64
	err := row.Scan(&doc.ID, &doc.StoredName, &doc.OriginalName, &doc.Type, &doc.SizeBytes,
		&doc.Description, &doc.FragmentCount, &doc.Status, &createdAt, &updatedAt)
	if err != nil {
		return Document{}, err
	}
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return doc, nil
}
