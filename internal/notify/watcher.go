package notify

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// debounceDelay coalesces the event bursts editors produce on save.
const debounceDelay = 250 * time.Millisecond

// Watcher hot-reloads the notification specs file. A reload that fails
// to parse keeps the previous spec set in place.
type Watcher struct {
	path     string
	onReload func(map[string]*Spec)
}

// NewWatcher creates a watcher for the specs file. onReload is called
// with every successfully parsed new set.
func NewWatcher(path string, onReload func(map[string]*Spec)) *Watcher {
	return &Watcher{path: path, onReload: onReload}
}

// Run watches until the context is cancelled. The parent directory is
// watched rather than the file itself: editors typically replace files
// via rename+create, which drops a direct file watch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	log.Info().Str("path", w.path).Msg("Watching specs file for changes")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounceDelay)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Specs watcher error")

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	specs, err := LoadSpecs(w.path)
	if err != nil {
		log.Warn().
			Err(err).
			Str("path", w.path).
			Msg("Specs reload failed, keeping previous set")
		return
	}

	log.Info().
		Int("specs", len(specs)).
		Str("path", w.path).
		Msg("Specs file reloaded")
	w.onReload(specs)
}
