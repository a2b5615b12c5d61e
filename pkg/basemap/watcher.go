package basemap

import (
	"io"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a basemap file whenever it changes on disk and hands
// the new feature set to a callback. Parse failures are logged and the
// previous feature set stays in effect.
type Watcher struct {
	fsw       *fsnotify.Watcher
	path      string
	logger    *log.Logger
	onReload  func([]models.Feature)
	closeOnce sync.Once
}

// NewWatcher starts watching the given basemap file. The callback runs on
// the watcher's goroutine; keep it short or hand off.
func NewWatcher(path string, logger *log.Logger, onReload func([]models.Feature)) (*Watcher, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors and atomic writers replace the file,
	// which drops a watch registered on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		path:     filepath.Clean(path),
		logger:   logger,
		onReload: onReload,
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce bursts of events from a single save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("basemap: watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	features, err := LoadFile(w.path)
	if err != nil {
		w.logger.Printf("basemap: reload %s: %v", w.path, err)
		return
	}
	w.logger.Printf("basemap: reloaded %s, %d features", w.path, len(features))
	w.onReload(features)
}
