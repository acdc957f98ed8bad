package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rayhq/docuchat/internal/observability"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a unique key collision.
	ErrConflict = errors.New("record already exists")
	// ErrDimensionMismatch indicates a vector whose length differs from
	// the store's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Document types
const (
	TypePDF      = "PDF"
	TypeText     = "TEXT"
	TypeMarkdown = "MARKDOWN"
)

// Document statuses
const (
	StatusProcessing = "PROCESSING"
	StatusIndexed    = "INDEXED"
	StatusFailed     = "FAILED"
)

// Document represents one logical upload.
type Document struct {
	ID            string    `json:"id"`
	StoredName    string    `json:"stored_name"`
	OriginalName  string    `json:"original_name"`
	Type          string    `json:"type"`
	SizeBytes     int64     `json:"size_bytes"`
	Description   string    `json:"description,omitempty"`
	FragmentCount int       `json:"fragment_count"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Fragment is one retrievable unit of document text with its embedding.
// DocumentID is an association by value: the store never enforces
// referential integrity against documents, cascade deletion is the
// ingestion pipeline's job.
type Fragment struct {
	EmbeddingID string                 `json:"embedding_id"`
	DocumentID  string                 `json:"document_id"`
	Text        string                 `json:"text"`
	Vector      []float32              `json:"vector"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ChunkIndex  int                    `json:"chunk_index"`
}

// Match is a scored search result. Vectors are not materialized back;
// callers get text, metadata and score only.
type Match struct {
	EmbeddingID string                 `json:"embedding_id"`
	DocumentID  string                 `json:"document_id"`
	Text        string                 `json:"text"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ChunkIndex  int                    `json:"chunk_index"`
	Score       float64                `json:"score"`
}

// Profile is a named assistant configuration.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store owns the sqlite database holding documents, fragments, their
// vectors and assistant profiles.
type Store struct {
	db        *sql.DB
	dimension int
	logger    zerolog.Logger
}

// Config holds store configuration
type Config struct {
	DBPath    string
	Dimension int
	Logger    zerolog.Logger
}

// Open opens (or creates) the store database and initializes its schema.
func Open(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:        db,
		dimension: cfg.Dimension,
		logger:    cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().
		Str("db", cfg.DBPath).
		Int("dimension", cfg.Dimension).
		Msg("Store opened")

	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			stored_name TEXT NOT NULL,
			original_name TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			fragment_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS fragments (
			embedding_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			chunk_index INTEGER NOT NULL,
			UNIQUE (document_id, chunk_index)
		);
		CREATE INDEX IF NOT EXISTS idx_fragments_document ON fragments(document_id);

		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			description TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			temperature REAL NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS fragment_vectors USING vec0(
			embedding_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, s.dimension)

	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// Dimension returns the fixed vector dimension of this store.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.logger.Info().Msg("Closing store")
	return s.db.Close()
}

// isConstraintErr reports whether err is a sqlite unique constraint violation.
func isConstraintErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func nowUnix() int64 {
	return time.Now().Unix()
}
