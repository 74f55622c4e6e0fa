package devserver

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/forgepack/internal/logfields"
)

// watcher follows the directories holding a bundle's inputs.
type watcher struct {
	fs      *fsnotify.Watcher
	ignore  []string
	logger  *slog.Logger
	mu      sync.Mutex
	watched map[string]bool
}

func newWatcher(ignore []string, logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	clean := make([]string, 0, len(ignore))
	for _, d := range ignore {
		if d != "" {
			clean = append(clean, filepath.Clean(d))
		}
	}
	return &watcher{fs: fw, ignore: clean, logger: logger, watched: map[string]bool{}}, nil
}

// update starts watching the parent directory of every input not yet covered.
func (w *watcher) update(inputs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, in := range inputs {
		dir := filepath.Dir(in)
		if w.watched[dir] || w.ignored(dir) {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Debug("watch add failed", logfields.Path(dir), logfields.Error(err))
			continue
		}
		w.watched[dir] = true
	}
}

// ignored reports whether dir is a dependency directory or inside an ignored tree.
func (w *watcher) ignored(dir string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
		if seg == "node_modules" {
			return true
		}
	}
	for _, ig := range w.ignore {
		if dir == ig || strings.HasPrefix(dir, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for d := range w.watched {
		out = append(out, d)
	}
	return out
}

func (w *watcher) close() error {
	return w.fs.Close()
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

// setupRebuildDebouncer returns the rebuild request channel and a trigger that
// coalesces bursts of events into one request.
func setupRebuildDebouncer(delay time.Duration) (chan struct{}, func(), func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}
	return rebuildReq, trigger, stop
}

// startWatchLoop consumes watcher events and runs rebuilds one at a time.
func (s *Server) startWatchLoop() {
	rebuildReq, trigger, stop := setupRebuildDebouncer(s.cfg.Debounce)
	ignore := s.watch.ignored

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case ev, ok := <-s.watch.fs.Events:
				if !ok {
					return
				}
				if shouldIgnoreEvent(ev) || ignore(filepath.Dir(ev.Name)) {
					continue
				}
				s.logger.Debug("File change detected", logfields.Path(ev.Name), "op", ev.Op.String())
				trigger()
			case err, ok := <-s.watch.fs.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watcher error", logfields.Error(err))
			}
		}
	}()

	// rebuildReq buffers one request, so changes during a rebuild schedule exactly
	// one more.
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-rebuildReq:
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Info("Change detected; rebuilding")
				_, _ = s.Rebuild(s.ctx)
			}
		}
	}()
}
