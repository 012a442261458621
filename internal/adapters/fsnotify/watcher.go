// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It watches a single spool directory (not recursively), filters out anything that
// is not a finished *.json or *.jsonl record file, and debounces bursts of events
// so a file is reported once after its writer goes quiet.
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corey/doclink/internal/logger"
	"github.com/corey/doclink/internal/ports"
)

// DefaultDebounce is the quiet period after the last event on a path before
// onChange fires.
const DefaultDebounce = 50 * time.Millisecond

// Spool file extensions that trigger a callback.
var spoolExts = map[string]bool{
	".json":  true,
	".jsonl": true,
}

// Suffixes written by editors and atomic writers before the final rename.
var ignoreSuffixes = []string{".tmp", ".swp", ".part", "~"}

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw       *fsnotify.Watcher
	done     chan struct{}
	stopped  bool
	mu       sync.Mutex
	debounce time.Duration
	timers   map[string]*time.Timer
}

var _ ports.Watcher = (*Watcher)(nil)

// NewWatcher creates a new spool watcher.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:       fw,
		done:     make(chan struct{}),
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// SetDebounce overrides the quiet period. Call before Watch.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Watch starts monitoring dir. onChange is called with the absolute path of
// each record file that was created, written, or renamed into dir.
func (w *Watcher) Watch(dir string, onChange func(filePath string)) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := w.fw.Add(absPath); err != nil {
		return err
	}
	log := logger.ComponentLogger("watcher")

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if filepath.Dir(event.Name) != absPath || !IsSpoolFile(event.Name) {
					continue
				}
				if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
					continue
				}
				w.schedule(event.Name, onChange)

			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				log.Warnw("watch error", logger.FieldPath, absPath, logger.FieldError, err)

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// schedule (re)arms the per-path timer. The callback fires once the path has
// been quiet for the debounce period.
func (w *Watcher) schedule(path string, onChange func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped {
			onChange(path)
		}
	})
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	close(w.done)
	return w.fw.Close()
}

// IsSpoolFile reports whether path names a finished record file: a visible
// *.json or *.jsonl file that is not an in-progress temp file.
func IsSpoolFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	for _, suf := range ignoreSuffixes {
		if strings.HasSuffix(base, suf) {
			return false
		}
	}
	return spoolExts[strings.ToLower(filepath.Ext(base))]
}
