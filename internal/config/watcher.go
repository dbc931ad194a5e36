package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/pdfdesk/internal/logging"
)

// Operation is the kind of change observed on a watched file.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates the file was created or replaced.
	OpCreate

	// OpRemove indicates the file was deleted or renamed away.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// FileEvent describes a change to a watched file.
type FileEvent struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is the coalesced operation.
	Op Operation

	// Time is when the last underlying notification arrived.
	Time time.Time
}

// Handler is called when a watched file changes.
type Handler func(FileEvent)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for a burst of
// notifications on one file to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger for watcher errors.
func WithWatcherLogger(l logging.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logging.OrNop(l).WithComponent("config-watcher")
	}
}

// Watcher reports changes to individual files.
//
// It watches the parent directory of each file, so editors that save by
// writing a temporary file and renaming it over the original are seen as
// a create of the watched path.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	logger logging.Logger

	files    map[string]bool // watched absolute file paths
	dirs     map[string]int  // watched directories, by file count
	handlers []Handler

	debounce time.Duration
	pending  map[string]*pendingEvent

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// pendingEvent is a debounced change waiting to be delivered.
type pendingEvent struct {
	op    Operation
	at    time.Time
	timer *time.Timer
}

// NewWatcher creates a watcher and starts its event loop.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		logger:   logging.Nop(),
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]*pendingEvent),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch adds path to the watch list. The file need not exist yet, but its
// directory must.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[abs] {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Unwatch removes path from the watch list.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.files[abs] {
		return nil
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		return w.fsw.Remove(dir)
	}
	return nil
}

// OnChange registers a handler. Handlers run on the watcher's goroutine.
func (w *Watcher) OnChange(h Handler) {
	if h == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// WatchedFiles returns the number of watched files.
func (w *Watcher) WatchedFiles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

// Close stops the watcher. Pending debounced events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// processLoop translates fsnotify events until Close.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)
		}
	}
}

// handleEvent filters ev to watched files and queues it.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	var op Operation
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpRemove
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.files[path] {
		return
	}

	now := time.Now()
	if w.debounce == 0 {
		go w.deliver(FileEvent{Path: path, Op: op, Time: now})
		return
	}

	if p, ok := w.pending[path]; ok {
		p.op = coalesce(p.op, op)
		p.at = now
		p.timer.Reset(w.debounce)
		return
	}
	p := &pendingEvent{op: op, at: now}
	p.timer = time.AfterFunc(w.debounce, func() { w.flush(path) })
	w.pending[path] = p
}

// coalesce merges a new operation into a pending one. A remove followed by
// a create is a replacement and reported as a create.
func coalesce(prev, next Operation) Operation {
	switch {
	case next == OpRemove:
		return OpRemove
	case next == OpCreate:
		return OpCreate
	case prev == OpCreate || prev == OpRemove:
		return prev
	default:
		return next
	}
}

// flush delivers the pending event for path.
func (w *Watcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	ev := FileEvent{Path: path, Op: p.op, Time: p.at}
	w.mu.Unlock()

	w.deliver(ev)
}

// deliver calls every handler, recovering panics.
func (w *Watcher) deliver(ev FileEvent) {
	w.mu.Lock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("config change handler panicked", "path", ev.Path, "panic", r)
				}
			}()
			h(ev)
		}()
	}
}
