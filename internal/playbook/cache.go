package playbook

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"cassmem/internal/logging"
)

// Cache wraps LoadMerged for long-running callers (the JSON-RPC wrapper).
// The merged view is rebuilt lazily and invalidated by filesystem events on
// the cascade's directories, so concurrent CLI writes are picked up without
// re-reading on every query.
type Cache struct {
	src Sources

	mu      sync.Mutex
	view    *Playbook
	watcher *fsnotify.Watcher
}

// NewCache builds a cache over the given cascade. The watcher is best-effort:
// when it cannot be created the cache degrades to reload-on-every-Get.
func NewCache(src Sources) *Cache {
	c := &Cache{src: src}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Get(logging.CategoryPlaybook).Warn("Playbook watcher unavailable, caching disabled: %v", err)
		return c
	}
	c.watcher = w

	for _, p := range []string{src.GlobalPath, src.RepoPath} {
		if p == "" {
			continue
		}
		// Watch the directory: atomic saves rename over the file, which drops
		// a watch registered on the file itself.
		if err := w.Add(filepath.Dir(p)); err != nil {
			logging.PlaybookDebug("Cannot watch %s: %v", filepath.Dir(p), err)
		}
	}

	go c.run()
	return c
}

func (c *Cache) run() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if c.relevant(ev.Name) {
				logging.PlaybookDebug("Playbook cache invalidated by %s", ev.Name)
				c.Invalidate()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryPlaybook).Warn("Playbook watcher error: %v", err)
		}
	}
}

func (c *Cache) relevant(name string) bool {
	for _, p := range []string{c.src.GlobalPath, c.src.RepoPath, c.src.GlobalToxicPath, c.src.RepoToxicPath} {
		if p != "" && filepath.Clean(name) == filepath.Clean(p) {
			return true
		}
	}
	return false
}

// Get returns the cached merged view, rebuilding it when invalidated.
func (c *Cache) Get() (*Playbook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != nil && c.watcher != nil {
		return c.view, nil
	}
	view, err := LoadMerged(c.src)
	if err != nil {
		return nil, err
	}
	c.view = view
	return view, nil
}

// Invalidate drops the cached view.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.view = nil
	c.mu.Unlock()
}

// Close releases the watcher.
func (c *Cache) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
