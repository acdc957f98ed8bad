package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayhq/docuchat/internal/config"
	"github.com/rayhq/docuchat/internal/logger"
	"github.com/rayhq/docuchat/pkg/store"
)

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = 4
	cfg.Chat.APIKey = "sk-test"
	return cfg
}

func createTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "disabled"})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	a, err := New(cfg, log)
	require.NoError(t, err)
	return a
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Embedding.Dimension = 0

	log, err := logger.New(logger.Config{Level: "disabled"})
	require.NoError(t, err)
	defer log.Close()

	_, err = New(cfg, log)
	assert.Error(t, err)
}

func TestApp_StartStop(t *testing.T) {
	a := createTestApp(t, createTestConfig(t))

	require.NoError(t, a.Start())
	assert.Error(t, a.Start(), "double start must fail")

	require.NoError(t, a.Stop())
	assert.Error(t, a.Stop(), "double stop must fail")
}

func TestApp_EndToEndIngestAndSearch(t *testing.T) {
	a := createTestApp(t, createTestConfig(t))
	require.NoError(t, a.Start())
	defer a.Stop()

	ctx := context.Background()
	doc, err := a.Pipeline().Ingest(ctx, []byte("docuchat stores document fragments"), "note.txt", "")
	require.NoError(t, err)
	assert.Equal(t, store.StatusIndexed, doc.Status)

	docs, err := a.Store().ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)
}

func TestApp_InboxWatcher(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Ingest.InboxDir = filepath.Join(t.TempDir(), "inbox")

	a := createTestApp(t, cfg)
	require.NoError(t, a.Start())
	defer a.Stop()

	path := filepath.Join(cfg.Ingest.InboxDir, "dropped.txt")
	require.NoError(t, os.WriteFile(path, []byte("file dropped into the inbox"), 0o644))

	require.Eventually(t, func() bool {
		docs, err := a.Store().ListDocuments(context.Background())
		return err == nil && len(docs) == 1 && docs[0].Status == store.StatusIndexed
	}, 5*time.Second, 50*time.Millisecond)
}

func TestApp_Accessors(t *testing.T) {
	a := createTestApp(t, createTestConfig(t))
	defer func() {
		if a.running {
			a.Stop()
		}
	}()

	assert.NotNil(t, a.Store())
	assert.NotNil(t, a.Pipeline())
	assert.NotNil(t, a.Sessions())
	assert.NotNil(t, a.Orchestrator())
	assert.NotNil(t, a.MetricsHandler())

	caps := a.Orchestrator().Capabilities()
	assert.True(t, caps.Retrieval)
	assert.False(t, caps.WebSearch)

	require.NoError(t, a.store.Close())
}
