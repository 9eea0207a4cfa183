// Package watch re-runs the pipeline when a pack changes on disk.
//
// A directory pack is watched recursively, with directories created later
// added as they appear. A zip pack is watched through its parent directory
// and only events naming the archive itself count. Bursts of events are
// coalesced: the callback runs once the pack has been quiet for the
// debounce interval.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Exclude lists directories whose events are ignored, typically the
	// cache directory when it lives inside the pack.
	Exclude []string
	// Also lists files outside the pack whose changes count as pack
	// changes, such as its settings file.
	Also   []string
	Logger *zap.Logger
}

// Watcher watches one pack.
type Watcher struct {
	fw       *fsnotify.Watcher
	path     string
	isDir    bool
	debounce time.Duration
	exclude  []string
	also     map[string]bool
	log      *zap.Logger
}

// New starts watching the pack at path.
func New(path string, opts Options) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		fw:       fw,
		path:     path,
		isDir:    info.IsDir(),
		debounce: opts.Debounce,
		also:     make(map[string]bool),
		log:      opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	for _, ex := range opts.Exclude {
		if abs, err := filepath.Abs(ex); err == nil {
			w.exclude = append(w.exclude, abs)
		}
	}

	if w.isDir {
		err = w.addTree(path)
	} else {
		err = fw.Add(filepath.Dir(path))
	}
	for _, f := range opts.Also {
		if err != nil {
			break
		}
		var abs string
		if abs, err = filepath.Abs(f); err == nil {
			w.also[abs] = true
			err = fw.Add(filepath.Dir(abs))
		}
	}
	if err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Run delivers debounced change notifications to onChange until ctx is
// done or the watcher is closed. An error from onChange is logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("change", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if w.isDir && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if err := onChange(ctx); err != nil {
				w.log.Error("rebuild failed", zap.String("pack", w.path), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.also[name] {
		return true
	}
	if !w.isDir {
		return name == w.path
	}
	if name != w.path && !strings.HasPrefix(name, w.path+string(filepath.Separator)) {
		return false
	}
	for _, ex := range w.exclude {
		if name == ex || strings.HasPrefix(name, ex+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		for _, ex := range w.exclude {
			if p == ex {
				return filepath.SkipDir
			}
		}
		if err := w.fw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}
