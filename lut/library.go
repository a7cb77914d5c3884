package lut

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/eventbus"
)

// Library holds named filters and tracks the active one.
//
// The library is the "LUT source" collaborator: the pipeline only consumes
// its active filter and the FilterChanged notifications it publishes on the
// bus. The identity filter is always registered.
//
// Thread-safety: all methods safe for concurrent use. Active() is a single
// atomic load, cheap enough to call per frame.
type Library struct {
	mu      sync.RWMutex
	filters map[string]*Filter

	activeName string
	active     atomic.Pointer[Filter] // nil = no filter

	bus *eventbus.Bus
	log zerolog.Logger

	watchWG sync.WaitGroup
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithBus publishes FilterChanged events on bus when the active filter is
// replaced or cleared.
func WithBus(bus *eventbus.Bus) LibraryOption {
	return func(l *Library) { l.bus = bus }
}

// WithLogger sets the library logger.
func WithLogger(log zerolog.Logger) LibraryOption {
	return func(l *Library) { l.log = log }
}

// NewLibrary creates a library with the identity filter pre-registered.
func NewLibrary(opts ...LibraryOption) *Library {
	l := &Library{
		filters: make(map[string]*Filter),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	id := Identity()
	l.filters[id.Name()] = id
	return l
}

// Add registers a filter under its name, replacing any previous filter with
// the same name. If the replaced filter was active, the active reference is
// swapped to the new value atomically.
func (l *Library) Add(f *Filter) {
	if f == nil {
		return
	}
	l.mu.Lock()
	l.filters[f.Name()] = f
	replaceActive := l.activeName == f.Name()
	if replaceActive {
		l.active.Store(f)
	}
	l.mu.Unlock()

	if replaceActive {
		l.notify(f)
	}
}

// Remove deletes a filter by name. Removing the active filter clears the
// active reference (equivalent to SetActive("")). The identity filter
// cannot be removed.
func (l *Library) Remove(name string) {
	if name == "identity" {
		return
	}
	l.mu.Lock()
	_, existed := l.filters[name]
	delete(l.filters, name)
	clearActive := existed && l.activeName == name
	if clearActive {
		l.activeName = ""
		l.active.Store(nil)
	}
	l.mu.Unlock()

	if clearActive {
		l.notify(nil)
	}
}

// Get returns a filter by name.
func (l *Library) Get(name string) (*Filter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.filters[name]
	return f, ok
}

// Names returns the registered filter names (unordered).
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.filters))
	for name := range l.filters {
		names = append(names, name)
	}
	return names
}

// SetActive selects the active filter by name. The empty string (or "none")
// clears the active filter. Replacement is atomic: a concurrent reader sees
// either the previous filter or the new one, never a partial value.
func (l *Library) SetActive(name string) error {
	if name == "" || name == "none" {
		l.mu.Lock()
		l.activeName = ""
		l.active.Store(nil)
		l.mu.Unlock()
		l.notify(nil)
		return nil
	}

	l.mu.Lock()
	f, ok := l.filters[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("lut: filter %q not found", name)
	}
	l.activeName = name
	l.active.Store(f)
	l.mu.Unlock()

	l.notify(f)
	return nil
}

// Active returns the current active filter, or nil when none is selected.
func (l *Library) Active() *Filter {
	return l.active.Load()
}

// LoadDir parses every .cube file in dir and registers the results.
// Individual parse failures are logged and skipped; only a directory-level
// failure is returned. Returns the number of filters loaded.
func (l *Library) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("lut: reading dir %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".cube") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := LoadCubeFile(path)
		if err != nil {
			l.log.Warn().Err(err).Str("path", path).Msg("skipping unparseable LUT")
			continue
		}
		l.Add(f)
		loaded++
	}
	l.log.Info().Int("count", loaded).Str("dir", dir).Msg("LUT directory loaded")
	return loaded, nil
}

// Watch hot-loads .cube files created or modified in dir until ctx is
// cancelled. Removed files are deregistered. The watcher goroutine exits on
// ctx.Done; Watch returns once the watcher is installed.
func (l *Library) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("lut: creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("lut: watching %s: %w", dir, err)
	}

	l.watchWG.Add(1)
	go func() {
		defer l.watchWG.Done()
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(ev.Name), ".cube") {
					continue
				}
				switch {
				case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
					f, err := LoadCubeFile(ev.Name)
					if err != nil {
						l.log.Warn().Err(err).Str("path", ev.Name).Msg("hot-load failed")
						continue
					}
					l.Add(f)
					l.log.Info().Str("filter", f.Name()).Msg("LUT hot-loaded")

				case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
					base := filepath.Base(ev.Name)
					l.Remove(strings.TrimSuffix(base, filepath.Ext(base)))
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log.Warn().Err(err).Msg("LUT watcher error")
			}
		}
	}()
	return nil
}

// WaitWatch blocks until the watcher goroutine has exited. Intended for
// orderly shutdown after cancelling the Watch context.
func (l *Library) WaitWatch() {
	l.watchWG.Wait()
}

func (l *Library) notify(f *Filter) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(eventbus.FilterChanged, f)
}
