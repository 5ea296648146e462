package model

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a file to settle
// before handing it to the repository. Editors often produce bursts of
// writes; only the last one matters.
const DefaultDebounce = 500 * time.Millisecond

// Watcher feeds a model directory tree into a Repository. It performs
// an initial scan on Start and afterwards mirrors filesystem changes:
// created and modified files are (re)processed, deleted files and
// directories remove their models. Hidden files, editor temp files and
// non-YAML files are ignored.
type Watcher struct {
	repo     *Repository
	dir      string
	logger   Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for dir feeding repo. A nil logger logs
// nothing.
func NewWatcher(repo *Repository, dir string, logger Logger) *Watcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Watcher{
		repo:     repo,
		dir:      dir,
		logger:   logger,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}
}

// SetDebounce overrides the settle delay for changed files. Call before
// Start; zero or negative keeps DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start creates the directory if needed, loads every model file in it
// synchronously, and begins watching for changes. Listeners should be
// registered on the repository before Start so the initial scan reaches
// them.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("model watcher: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("model watcher: %w", err)
	}
	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if err := w.watchTree(w.dir); err != nil {
		w.Stop()
		return err
	}
	w.scan(w.dir)

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("watching model directory", "dir", w.dir)
	return nil
}

// Stop ends watching and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// watchTree adds watches for dir and every non-hidden directory below
// it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.mu.Lock()
		watcher := w.watcher
		w.mu.Unlock()
		if watcher == nil {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("model watcher: watching %s: %w", path, err)
		}
		return nil
	})
}

// scan processes every eligible file under dir, in lexical order.
func (w *Watcher) scan(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if w.eligible(path) {
			w.sync(path)
		}
		return nil
	})
	if err != nil {
		w.logger.Error("model directory scan failed", "dir", dir, "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("model watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				return
			}
			// New subtree: watch it and pick up files that landed
			// before the watch was in place.
			if err := w.watchTree(event.Name); err != nil {
				w.logger.Error("model watcher error", "error", err)
			}
			w.scan(event.Name)
			return
		}
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Could have been a file or a directory; handle both.
		if w.eligible(event.Name) {
			w.schedule(event.Name)
		} else if filepath.Ext(event.Name) == "" {
			w.removeTree(event.Name)
		}
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if w.eligible(event.Name) {
			w.schedule(event.Name)
		}
	}
}

// schedule (re)arms the debounce timer for path. Repeated events within
// the window collapse into one sync.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		_, ok := w.pending[path]
		if ok {
			delete(w.pending, path)
		}
		running := w.running
		w.mu.Unlock()
		if ok && running {
			w.sync(path)
		}
	})
}

// sync reconciles one path with the repository: missing files remove
// their model, present files are parsed and processed.
func (w *Watcher) sync(path string) {
	name, err := w.modelName(path)
	if err != nil {
		w.logger.Error("ignoring file outside model directory", "path", path, "error", err)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			w.repo.RemoveFile(name)
			return
		}
		w.logger.Error("stat failed", "path", path, "error", err)
		return
	}
	if info.IsDir() {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error("reading model file failed", "path", path, "error", err)
		return
	}
	// ProcessFile records parse failures on the model itself.
	_ = w.repo.ProcessFile(name, content)
}

// removeTree drops every model under a deleted directory.
func (w *Watcher) removeTree(path string) {
	name, err := w.modelName(path)
	if err != nil {
		return
	}
	prefix := name + "/"
	for _, model := range w.repo.ModelNames() {
		if strings.HasPrefix(model, prefix) {
			w.repo.RemoveFile(model)
		}
	}
}

// modelName converts an absolute path into the slash-separated
// dir-relative name models are filed under.
func (w *Watcher) modelName(path string) (string, error) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s is outside %s", path, w.dir)
	}
	return filepath.ToSlash(rel), nil
}

// eligible reports whether a path is a model file the watcher should
// process: inside the model directory with a YAML extension, not
// hidden, not an editor backup, and in no hidden subdirectory.
func (w *Watcher) eligible(path string) bool {
	rel, err := w.modelName(path)
	if err != nil {
		return false
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "#") {
			return false
		}
	}
	return true
}
