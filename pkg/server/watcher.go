package server

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/journal"
)

// SaveHistory reports the checksum of the last save the game itself made.
type SaveHistory interface {
	LastChecksum(path string) (string, error)
}

// CatalogWatcher reports catalog files changed on disk by something other
// than the game, so an administrator can decide whether to reload them.
type CatalogWatcher struct {
	paths   map[string]catalog.Kind
	inbox   *Inbox
	notify  func(kind catalog.Kind, path string)
	history SaveHistory

	mu   sync.Mutex
	seen map[string]string // path -> checksum last announced
	w    *fsnotify.Watcher
}

// WatchCatalogs watches the directories holding every catalog in m. notify
// runs on the loop goroutine. history may be nil, in which case the game's
// own saves are announced too.
func WatchCatalogs(m *catalog.Manager, inbox *Inbox, history SaveHistory,
	notify func(kind catalog.Kind, path string)) (*CatalogWatcher, error) {

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog watcher: %w", err)
	}
	cw := &CatalogWatcher{
		paths:   make(map[string]catalog.Kind),
		inbox:   inbox,
		notify:  notify,
		history: history,
		seen:    make(map[string]string),
		w:       w,
	}
	dirs := make(map[string]bool)
	for _, k := range catalog.Kinds() {
		p := filepath.Clean(m.Path(k))
		cw.paths[p] = k
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		log.Printf("Watching catalog directory for changes: %s", dir)
	}
	go cw.run()
	return cw, nil
}

// Close stops the watcher.
func (cw *CatalogWatcher) Close() error { return cw.w.Close() }

func (cw *CatalogWatcher) run() {
	for {
		select {
		case event, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			kind, tracked := cw.paths[path]
			if !tracked || !cw.changed(path) {
				continue
			}
			log.Printf("Catalog file changed: %s (%s)", path, kind)
			cw.inbox.Post(func() { cw.notify(kind, path) })

		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			log.Printf("Catalog watcher error: %v", err)
		}
	}
}

// changed reports whether path holds content that is neither the game's
// last save nor something already announced.
func (cw *CatalogWatcher) changed(path string) bool {
	sum, err := journal.Checksum(path)
	if err != nil {
		return false
	}
	if cw.history != nil {
		if last, err := cw.history.LastChecksum(path); err == nil && last == sum {
			return false
		}
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.seen[path] == sum {
		return false
	}
	cw.seen[path] = sum
	return true
}
