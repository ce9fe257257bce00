package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
)

// DefaultDebounce is the quiet period before a change fires
const DefaultDebounce = 2 * time.Second

// Watcher observes directory trees and reports which registered root
// changed, debounced per root. Removable media and spool directories
// see bursts of writes; one notification per settled burst is what a
// sync trigger wants.
type Watcher struct {
	debounce time.Duration
	fs       *fsnotify.Watcher
	changes  chan string
	logger   zerolog.Logger

	mu      sync.Mutex
	roots   []string
	timers  map[string]*time.Timer
	stopped bool

	done     chan struct{}
	loopDone chan struct{}
}

// NewWatcher creates a watcher. A non-positive debounce uses the
// default.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassSystem, err, "failed to create watcher")
	}

	return &Watcher{
		debounce: debounce,
		fs:       fsw,
		changes:  make(chan string, 16),
		logger:   log.WithComponent("watch"),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Add registers a root directory and every directory below it.
// Directories created later are picked up from their create events.
func (w *Watcher) Add(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return errdefs.Wrapf(errdefs.ClassSystem, err, "watch root %s unavailable", root)
	}
	if !info.IsDir() {
		return errdefs.Newf(errdefs.ClassConfiguration, "watch root %s is not a directory", root)
	}

	clean := filepath.Clean(root)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errdefs.Wrap(errdefs.ClassPrecondition, errdefs.ErrClosed)
	}
	w.roots = append(w.roots, clean)
	// Longest roots first so nested roots resolve to the deepest match
	sort.Slice(w.roots, func(i, j int) bool { return len(w.roots[i]) > len(w.roots[j]) })
	w.mu.Unlock()

	return w.watchTree(clean)
}

// Start begins delivering change notifications
func (w *Watcher) Start() {
	go w.loop()
}

// Changes returns the debounced change stream. Each value is the
// registered root whose subtree settled after a burst of events.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Stop ends the watch. The changes channel is closed after in-flight
// timers are discarded.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	for root, timer := range w.timers {
		timer.Stop()
		delete(w.timers, root)
	}
	w.mu.Unlock()

	close(w.done)
	w.fs.Close()
	<-w.loopDone
	close(w.changes)
}

// watchTree registers a directory and its existing subdirectories
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // tree may mutate underneath us; skip what vanished
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.loopDone)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories join the watch so deeper writes keep arriving
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watchTree(event.Name)
		}
	}

	root := w.rootOf(event.Name)
	if root == "" {
		return
	}
	w.schedule(root)
}

// rootOf resolves an event path to its registered root
func (w *Watcher) rootOf(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// schedule arms (or re-arms) the debounce timer for one root
func (w *Watcher) schedule(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if timer, ok := w.timers[root]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[root] = time.AfterFunc(w.debounce, func() {
		w.fire(root)
	})
}

// fire delivers one settled change, dropping it when the consumer is
// behind
func (w *Watcher) fire(root string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.timers, root)
	w.mu.Unlock()

	select {
	case w.changes <- root:
	default:
		w.logger.Warn().Str("root", root).Msg("Change dropped, consumer behind")
	}
}
