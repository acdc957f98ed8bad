package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rayhq/docuchat/internal/config"
	"github.com/rayhq/docuchat/internal/logger"
	"github.com/rayhq/docuchat/internal/observability"
	"github.com/rayhq/docuchat/pkg/chat"
	"github.com/rayhq/docuchat/pkg/embedding"
	"github.com/rayhq/docuchat/pkg/ingest"
	"github.com/rayhq/docuchat/pkg/llm"
	"github.com/rayhq/docuchat/pkg/session"
	"github.com/rayhq/docuchat/pkg/store"
	"github.com/rayhq/docuchat/pkg/websearch"
)

// App wires the whole assistant together from configuration: store,
// embedding, ingestion, session memory and the chat orchestrator.
type App struct {
	config *config.Config
	logger *logger.Logger

	store        *store.Store
	embedder     embedding.Provider
	pipeline     *ingest.Pipeline
	watcher      *ingest.Watcher
	sessions     *session.Cache
	janitor      *session.Janitor
	orchestrator *chat.Orchestrator

	mu      sync.Mutex
	running bool
}

// New assembles an app. Nothing background is started yet; call Start.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	observability.EnsureRegistered()

	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docuchat")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	zl := log.GetZerolog()

	st, err := store.Open(store.Config{
		DBPath:    filepath.Join(dataDir, "docuchat.db"),
		Dimension: cfg.Embedding.Dimension,
		Logger:    zl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	pipeline, err := ingest.NewPipeline(ingest.Config{
		Store:        st,
		Embedder:     embedder,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		Logger:       zl,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	sessions := session.NewCache(cfg.Chat.MemoryWindow, zl)
	janitor := session.NewJanitor(
		sessions,
		time.Duration(cfg.Chat.SessionMaxIdle)*time.Minute,
		"",
		zl,
	)

	model, err := llm.New(cfg.Chat.Provider, cfg.Chat.APIKey)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create model provider: %w", err)
	}
	model = llm.WithRetry(model, 3, zl)

	var search websearch.Provider
	if cfg.WebSearch.Enabled {
		search = websearch.NewTavily(cfg.WebSearch.APIKey)
	}

	orchestrator, err := chat.New(chat.OrchestratorConfig{
		Provider: model,
		Embedder: embedder,
		Store:    st,
		Sessions: sessions,
		Search:   search,
		Capabilities: chat.Capabilities{
			Retrieval: true,
			WebSearch: cfg.WebSearch.Enabled,
		},
		Model:        cfg.Chat.Model,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		MaxResults:   cfg.Retrieval.MaxResults,
		MinScore:     cfg.Retrieval.MinScore,
		MaxToolTurns: cfg.Chat.MaxToolTurns,
		Logger:       zl,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &App{
		config:       cfg,
		logger:       log,
		store:        st,
		embedder:     embedder,
		pipeline:     pipeline,
		sessions:     sessions,
		janitor:      janitor,
		orchestrator: orchestrator,
	}, nil
}

// Start launches the background services: the session janitor and,
// when an inbox directory is configured, the auto-ingest watcher.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("app is already running")
	}

	if err := a.janitor.Start(); err != nil {
		return fmt.Errorf("failed to start session janitor: %w", err)
	}

	if a.config.Ingest.InboxDir != "" {
		if err := os.MkdirAll(a.config.Ingest.InboxDir, 0700); err != nil {
			a.janitor.Stop()
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}

		watcher, err := ingest.NewWatcher(a.pipeline, a.logger.GetZerolog())
		if err != nil {
			a.janitor.Stop()
			return fmt.Errorf("failed to create inbox watcher: %w", err)
		}
		if err := watcher.Watch(a.config.Ingest.InboxDir); err != nil {
			watcher.Stop()
			a.janitor.Stop()
			return fmt.Errorf("failed to watch inbox directory: %w", err)
		}
		a.watcher = watcher
	}

	a.running = true
	a.logger.Info().
		Bool("web_search", a.config.WebSearch.Enabled).
		Msg("App started")
	return nil
}

// Stop shuts down background services and closes the store.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return fmt.Errorf("app is not running")
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop inbox watcher")
		}
		a.watcher = nil
	}
	if err := a.janitor.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop session janitor")
	}

	a.running = false
	return a.store.Close()
}

// Store returns the vector store.
func (a *App) Store() *store.Store {
	return a.store
}

// Pipeline returns the ingestion pipeline.
func (a *App) Pipeline() *ingest.Pipeline {
	return a.pipeline
}

// Sessions returns the session cache.
func (a *App) Sessions() *session.Cache {
	return a.sessions
}

// Orchestrator returns the chat orchestrator.
func (a *App) Orchestrator() *chat.Orchestrator {
	return a.orchestrator
}

// MetricsHandler exposes the prometheus metrics endpoint handler.
func (a *App) MetricsHandler() http.Handler {
	return observability.Handler()
}
