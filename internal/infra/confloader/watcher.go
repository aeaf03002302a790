package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a watched file must stay quiet before a
// change is reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to individual config files.
//
// Editors commonly save with several writes or a rename, so the parent
// directory is watched and bursts of events for one file collapse into a
// single callback once the file has been quiet for the debounce period.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.Mutex
	files     map[string]*time.Timer // nil timer: nothing pending
	callbacks []func(string)
	stopped   bool

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets the quiet period; zero reports every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a Watcher. Call Watch for each file, then StartAsync.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fw,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		files:    make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts tracking path. Its directory must exist.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fs.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	w.mu.Lock()
	if _, ok := w.files[abs]; !ok {
		w.files[abs] = nil
	}
	w.mu.Unlock()

	w.logger.Debug("watching config file", "path", abs)
	return nil
}

// OnChange registers fn to receive the absolute path of each changed file.
// Callbacks run on the watcher's own goroutines, one change at a time per
// file.
func (w *Watcher) OnChange(fn func(string)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.touch(ev.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start on a new goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends watching and cancels pending notifications. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		for _, t := range w.files {
			if t != nil {
				t.Stop()
			}
		}
		w.mu.Unlock()

		close(w.done)
		err = w.fs.Close()
	})
	return err
}

// touch records activity on name and (re)arms its notification timer.
func (w *Watcher) touch(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	t, tracked := w.files[abs]
	if !tracked || w.stopped {
		return
	}
	if w.debounce <= 0 {
		go w.fire(abs)
		return
	}
	if t != nil {
		t.Reset(w.debounce)
		return
	}
	w.files[abs] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.files[abs] = nil
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped {
			w.fire(abs)
		}
	})
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	cbs := append(([]func(string))(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Debug("config file changed", "path", path)
	for _, cb := range cbs {
		cb(path)
	}
}
