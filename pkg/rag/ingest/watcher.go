package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"finance-rag-be/internal/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

const DefaultSettleDelay = 500 * time.Millisecond

// IngestFunc rebuilds the index from the document at path.
type IngestFunc func(ctx context.Context, path string) error

// Watcher rebuilds the index whenever a CSV document lands in a directory.
// Writes are debounced per file so a document copied in several chunks is
// ingested once.
type Watcher struct {
	dir    string
	ingest IngestFunc
	logger logger.ILogger
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewWatcher(dir string, ingest IngestFunc, log logger.ILogger, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Watcher{
		dir:     dir,
		ingest:  ingest,
		logger:  log,
		settle:  settle,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("WATCHER", "Watching for documents", map[string]interface{}{"dir": w.dir})

	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isDocument(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("WATCHER", "Watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Info("WATCHER", "Ingesting document", map[string]interface{}{"path": path})
		if err := w.ingest(ctx, path); err != nil {
			w.logger.Error("WATCHER", "Ingestion failed", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func isDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
