// Package watch reloads local dataset files when they change on disk.
// Events are debounced per path so editors that write in bursts trigger a
// single reload.
package watch

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/lolikgiovi/lockey/pkg/bus"
	"github.com/lolikgiovi/lockey/pkg/dataset"
	"github.com/lolikgiovi/lockey/pkg/filter"
)

// DefaultDebounce is how long to wait after the last write before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Event reports a reloaded dataset file. Err is set when the file could not
// be read or normalized; Dataset is nil in that case.
type Event struct {
	Path    string
	Dataset *dataset.Dataset
	Err     error
}

// Handler receives reload events.
type Handler func(Event)

// Subscription binds a glob pattern to a handler.
type Subscription struct {
	ID      string
	Pattern string
	Handler Handler
}

// Watcher watches dataset files and re-normalizes them on change.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	bus      bus.MessageBus

	mu            sync.Mutex
	files         map[string]bool
	dirs          map[string]bool
	debouncers    map[string]*filter.Debouncer
	subscriptions map[string]*Subscription
	closed        bool
	done          chan struct{}
}

// New creates a watcher. The bus is optional; when set, every reload
// publishes to bus.SubjectFileChanged.
func New(debounce time.Duration, b bus.MessageBus) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:           fsw,
		debounce:      debounce,
		bus:           b,
		files:         make(map[string]bool),
		dirs:          make(map[string]bool),
		debouncers:    make(map[string]*filter.Debouncer),
		subscriptions: make(map[string]*Subscription),
		done:          make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch starts watching a dataset file. The parent directory is watched so
// atomic-rename saves are still observed.
func (w *Watcher) Watch(filePath string) error {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[abs] = true
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			delete(w.files, abs)
			return err
		}
		w.dirs[dir] = true
	}
	return nil
}

// Subscribe registers a handler for reload events whose path matches the
// glob pattern. An empty pattern or "*" matches everything.
func (w *Watcher) Subscribe(pattern string, handler Handler) string {
	if w == nil || handler == nil {
		return ""
	}
	id := ulid.Make().String()
	w.mu.Lock()
	w.subscriptions[id] = &Subscription{
		ID:      id,
		Pattern: strings.TrimSpace(pattern),
		Handler: handler,
	}
	w.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription.
func (w *Watcher) Unsubscribe(id string) {
	if w == nil || strings.TrimSpace(id) == "" {
		return
	}
	w.mu.Lock()
	delete(w.subscriptions, id)
	w.mu.Unlock()
}

// Close stops the watcher and all pending debounce timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	for _, debouncer := range w.debouncers {
		debouncer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ev.Name)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

// schedule arms (or re-arms) the per-path debouncer.
func (w *Watcher) schedule(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.files[abs] {
		return
	}
	debouncer, ok := w.debouncers[abs]
	if !ok {
		debouncer = filter.NewDebouncer(w.debounce)
		w.debouncers[abs] = debouncer
	}
	debouncer.Trigger(func() {
		w.reload(abs)
	})
}

func (w *Watcher) reload(filePath string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	event := Event{Path: filePath}
	data, err := os.ReadFile(filePath)
	if err != nil {
		event.Err = err
	} else {
		event.Dataset, event.Err = dataset.Normalize(data)
	}

	w.mu.Lock()
	subs := make([]*Subscription, 0, len(w.subscriptions))
	for _, sub := range w.subscriptions {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	for _, sub := range subs {
		if matchesPattern(sub.Pattern, event.Path) {
			sub.Handler(event)
		}
	}

	if w.bus != nil && event.Err == nil {
		_ = w.bus.Publish(context.Background(), bus.SubjectFileChanged, []byte(event.Path))
	}
}

func matchesPattern(pattern, filePath string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return true
	}
	clean := filepath.ToSlash(filePath)
	if ok, _ := path.Match(pattern, clean); ok {
		return true
	}
	ok, _ := path.Match(pattern, path.Base(clean))
	return ok
}
