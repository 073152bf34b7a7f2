// Package watch re-ingests JSON documents when they change on disk.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/ingest"
)

const DefaultDebounce = 100 * time.Millisecond

// Ingester is the part of ingest.Engine the watcher drives.
type Ingester interface {
	Ingest(ctx context.Context, doc *api.SourceDocument) error
}

// Watcher maps filesystem events under Root to document re-ingests. A
// changed document first loses everything registered beneath it, then is
// ingested again. A removed document only loses its descendants.
type Watcher struct {
	Root     string // Host directory; document paths are relative to it
	Engine   Ingester
	Pruner   graph.Pruner
	IDs      graph.IdentityFactory
	Debounce time.Duration
	Logger   hclog.Logger

	// Synced, if set, is called after each debounced sync.
	Synced func(doc *api.SourceDocument, err error)

	mu      sync.Mutex
	pending map[string]*time.Timer
	syncing map[string]*sync.Mutex // One sync at a time per file
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	log := w.logger()
	if err := watchDirRecursive(watcher, w.Root); err != nil {
		return err
	}
	log.Info("watching", "root", w.Root)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchDirRecursive(watcher, event.Name); err != nil {
						log.Error("failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
			if !removed && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule(ctx, event.Name, removed)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) logger() hclog.Logger {
	if w.Logger == nil {
		return hclog.NewNullLogger()
	}
	return w.Logger
}

// DocumentFor describes the host file name as a document of the watched
// tree.
func (w *Watcher) DocumentFor(name string) (*api.SourceDocument, error) {
	rel, err := filepath.Rel(w.Root, name)
	if err != nil {
		return nil, err
	}
	return ingest.NewFileDocument("/"+filepath.ToSlash(rel), w.IDs), nil
}

func (w *Watcher) schedule(ctx context.Context, name string, removed bool) {
	d := w.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = make(map[string]*time.Timer)
	}
	if t, ok := w.pending[name]; ok {
		t.Stop()
	}
	w.pending[name] = time.AfterFunc(d, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()
		w.sync(ctx, name, removed)
	})
}

// pathLock returns the lock serializing syncs of name.
func (w *Watcher) pathLock(name string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.syncing == nil {
		w.syncing = make(map[string]*sync.Mutex)
	}
	l, ok := w.syncing[name]
	if !ok {
		l = &sync.Mutex{}
		w.syncing[name] = l
	}
	return l
}

func (w *Watcher) sync(ctx context.Context, name string, removed bool) {
	l := w.pathLock(name)
	l.Lock()
	defer l.Unlock()

	log := w.logger()
	doc, err := w.DocumentFor(name)
	if err != nil {
		log.Error("cannot map changed file", "file", name, "error", err)
		return
	}

	err = w.Pruner.DeleteDescendants(ctx, doc.ID)
	if err == nil && !removed {
		log.Debug("file changed, re-ingesting", "file", name)
		err = w.Engine.Ingest(ctx, doc)
	}
	if err != nil {
		log.Error("sync failed", "file", name, "error", err)
	}
	if w.Synced != nil {
		w.Synced(doc, err)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.pending {
		t.Stop()
		delete(w.pending, name)
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
