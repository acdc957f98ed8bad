package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/rayhq/docuchat/internal/tracing"
)

// Watcher ingests files dropped into an inbox directory. Events are
// debounced per file so a file still being written is picked up once,
// after the writes settle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	pipeline *Pipeline
	logger   zerolog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	stopCh chan struct{}
}

// NewWatcher creates a watcher feeding the given pipeline.
func NewWatcher(pipeline *Pipeline, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		pipeline: pipeline,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Watch starts watching an inbox directory.
func (w *Watcher) Watch(dir string) error {
	return w.watcher.Add(dir)
}

// Stop stops the watcher. Pending debounce timers are cancelled.
func (w *Watcher) Stop() error {
	close(w.stopCh)

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Skip dotfiles and editor temp files
			base := filepath.Base(event.Name)
			if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.logger.Debug().
					Str("file", base).
					Str("op", event.Op.String()).
					Msg("Inbox change detected")

				w.schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Inbox watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// schedule debounces ingestion of one path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.stopCh:
			return
		default:
		}

		w.ingest(path)
	})
}

func (w *Watcher) ingest(path string) {
	ctx := tracing.NewRequestContext(context.Background())
	logger := tracing.LoggerFromContext(ctx, w.logger)

	doc, err := w.pipeline.IngestFile(ctx, path, "inbox upload")
	if err != nil {
		logger.Error().Err(err).
			Str("file", filepath.Base(path)).
			Msg("Inbox ingestion failed")
		return
	}

	logger.Info().
		Str("file", filepath.Base(path)).
		Str("document_id", doc.ID).
		Str("status", doc.Status).
		Msg("Inbox file ingested")
}
