package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio-rag/config"
	"portfolio-rag/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// Runner runs one ingestion; *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, path, namespace string) (Summary, error)
}

var watchedExt = map[string]bool{".pdf": true, ".txt": true, ".md": true}

// Watcher re-ingests documents in a directory when they are created or
// rewritten. Editors and copies emit bursts of events, so a path runs only
// after it has been quiet for Debounce.
type Watcher struct {
	Runner    Runner
	Namespace string
	Debounce  time.Duration
	// Initial ingests the files already present before watching.
	Initial bool
	// OnRun receives every finished run; may be nil.
	OnRun func(Summary, error)

	mu      sync.Mutex
	pending map[string]time.Time
}

// Watch blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if w.Debounce <= 0 {
		w.Debounce = 500 * time.Millisecond
	}
	w.pending = map[string]time.Time{}
	log := logger.For(config.ModuleWatch).WithField("dir", dir)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if w.Initial {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && ingestible(e.Name()) {
				w.mark(filepath.Join(dir, e.Name()), time.Time{})
			}
		}
	}
	log.Info("watching")

	ticker := time.NewTicker(w.Debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if ingestible(ev.Name) {
					w.mark(ev.Name, time.Now())
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch error")
		case now := <-ticker.C:
			for _, path := range w.due(now) {
				summary, err := w.Runner.Run(ctx, path, w.Namespace)
				if w.OnRun != nil {
					w.OnRun(summary, err)
				}
			}
		}
	}
}

func (w *Watcher) mark(path string, at time.Time) {
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// due pops the paths that have been quiet for Debounce, in name order.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.Debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(out)
	return out
}

func ingestible(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return watchedExt[strings.ToLower(filepath.Ext(base))]
}
