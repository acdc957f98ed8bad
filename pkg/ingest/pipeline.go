package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rayhq/docuchat/internal/observability"
	"github.com/rayhq/docuchat/internal/tracing"
	"github.com/rayhq/docuchat/pkg/embedding"
	"github.com/rayhq/docuchat/pkg/store"
)

// Pipeline ingests raw files into the store: parse, split, embed,
// persist. A failed ingestion leaves a FAILED document row and no
// fragments behind.
type Pipeline struct {
	store    *store.Store
	embedder embedding.Provider
	splitter *Splitter
	parsers  map[string]Parser
	logger   zerolog.Logger
}

// Config holds pipeline configuration.
type Config struct {
	Store        *store.Store
	Embedder     embedding.Provider
	ChunkSize    int
	ChunkOverlap int
	Logger       zerolog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", cfg.ChunkOverlap)
	}

	return &Pipeline{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		parsers: map[string]Parser{
			"PDF":      NewPDFParser(),
			"MARKDOWN": &MarkdownParser{},
			"TEXT":     &PlainTextParser{},
		},
		logger: cfg.Logger,
	}, nil
}

// SetParser overrides the parser for one document type.
func (p *Pipeline) SetParser(docType string, parser Parser) {
	p.parsers[docType] = parser
}

// Ingest processes one file end to end and returns its document record.
// Processing failures are terminal but not fatal: the returned document
// carries FAILED status and no error is raised for them. Only store
// failures around the document row itself surface as errors.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte, filename, description string) (store.Document, error) {
	started := time.Now()

	doc, err := p.store.CreateDocument(ctx, store.Document{
		OriginalName: filename,
		Type:         DetectType(filename),
		SizeBytes:    int64(len(raw)),
		Description:  description,
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("failed to register document: %w", err)
	}

	ctx = tracing.WithDocumentID(ctx, doc.ID)
	logger := tracing.LoggerFromContext(ctx, p.logger)

	count, err := p.process(ctx, doc, raw)
	if err != nil {
		logger.Error().Err(err).
			Str("file", filename).
			Msg("Ingestion failed")
		return p.fail(ctx, doc, started)
	}

	if err := p.store.MarkIndexed(ctx, doc.ID, count); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize document")
		return p.fail(ctx, doc, started)
	}

	observability.RecordIngest(store.StatusIndexed, time.Since(started))
	logger.Info().
		Str("file", filename).
		Int("fragments", count).
		Dur("elapsed", time.Since(started)).
		Msg("Document indexed")

	doc.Status = store.StatusIndexed
	doc.FragmentCount = count
	return doc, nil
}

// process parses, splits, embeds and inserts. It returns the fragment
// count, leaving any partial inserts for the caller to clean up.
func (p *Pipeline) process(ctx context.Context, doc store.Document, raw []byte) (int, error) {
	parser, ok := p.parsers[doc.Type]
	if !ok {
		return 0, fmt.Errorf("no parser for type %s", doc.Type)
	}

	text, err := parser.Parse(ctx, raw)
	if err != nil {
		return 0, fmt.Errorf("parse failed: %w", err)
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, ErrEmptyDocument
	}

	for i, chunk := range chunks {
		vector, err := p.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("embedding chunk %d: %w", i, err)
		}

		_, err = p.store.Insert(ctx, store.Fragment{
			DocumentID: doc.ID,
			Text:       chunk,
			Vector:     vector,
			ChunkIndex: i,
			Metadata: map[string]interface{}{
				"documentId": doc.ID,
				"fileName":   doc.OriginalName,
				"chunkIndex": i,
			},
		})
		if err != nil {
			return 0, fmt.Errorf("storing chunk %d: %w", i, err)
		}
	}

	return len(chunks), nil
}

// fail rolls back partial fragments and marks the document FAILED.
func (p *Pipeline) fail(ctx context.Context, doc store.Document, started time.Time) (store.Document, error) {
	logger := tracing.LoggerFromContext(ctx, p.logger)

	if _, err := p.store.DeleteByDocument(ctx, doc.ID); err != nil {
		logger.Error().Err(err).Msg("Failed to remove partial fragments")
	}
	if err := p.store.MarkFailed(ctx, doc.ID); err != nil {
		logger.Error().Err(err).Msg("Failed to mark document failed")
	}

	observability.RecordIngest(store.StatusFailed, time.Since(started))

	doc.Status = store.StatusFailed
	doc.FragmentCount = 0
	return doc, nil
}

// IngestFile reads a file from disk and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path, description string) (store.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return store.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.Ingest(ctx, raw, filepath.Base(path), description)
}

// Delete removes a document and all of its fragments. Fragments go
// first so a crash between the two steps cannot orphan them.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if _, err := p.store.GetDocument(ctx, documentID); err != nil {
		return err
	}

	removed, err := p.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete fragments: %w", err)
	}
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	logger := tracing.LoggerFromContext(ctx, p.logger)
	logger.Info().
		Str("document_id", documentID).
		Int("fragments", removed).
		Msg("Document deleted")
	return nil
}
