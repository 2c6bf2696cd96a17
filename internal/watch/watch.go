// Package watch re-runs sharding as genai-bench writes new runs into the source tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Trigger is called once the source tree has been quiet for the debounce window.
type Trigger func(ctx context.Context) error

type Options struct {
	SourceDir     string
	ResultsDir    string
	MetadataFile  string
	ResultPattern string
	Debounce      time.Duration
	// RunOnStart fires the trigger once before any event arrives.
	RunOnStart bool
	Logger     *zap.Logger
}

type Watcher struct {
	opts       Options
	onSettle   Trigger
	log        *zap.Logger
	fsw        *fsnotify.Watcher
	resultsAbs string
	pending    time.Time
}

func New(opts Options, onSettle Trigger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	resultsAbs := ""
	if opts.ResultsDir != "" {
		abs, err := filepath.Abs(opts.ResultsDir)
		if err != nil {
			return nil, fmt.Errorf("resolving results dir: %w", err)
		}
		resultsAbs = abs
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{opts: opts, onSettle: onSettle, log: log, fsw: fsw, resultsAbs: resultsAbs}, nil
}

// Run blocks until ctx is cancelled. Trigger errors are logged, not returned,
// so one bad pass does not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	if err := w.addTree(w.opts.SourceDir); err != nil {
		return err
	}
	if w.opts.RunOnStart {
		w.fire(ctx)
	}

	tick := time.NewTicker(w.tickInterval())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", zap.Error(err))
		case <-tick.C:
			if !w.pending.IsZero() && time.Since(w.pending) >= w.opts.Debounce {
				w.pending = time.Time{}
				w.fire(ctx)
			}
		}
	}
}

func (w *Watcher) tickInterval() time.Duration {
	interval := w.opts.Debounce / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

func (w *Watcher) fire(ctx context.Context) {
	if err := w.onSettle(ctx); err != nil {
		w.log.Error("re-shard failed", zap.Error(err))
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	if w.isResults(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			// files may land before the watch is in place
			w.pending = time.Now()
			return
		}
	}
	if !w.relevant(filepath.Base(event.Name)) {
		return
	}
	w.log.Debug("source change", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	w.pending = time.Now()
}

func (w *Watcher) relevant(name string) bool {
	if name == w.opts.MetadataFile {
		return true
	}
	ok, _ := filepath.Match(w.opts.ResultPattern, name)
	return ok
}

func (w *Watcher) isResults(path string) bool {
	if w.resultsAbs == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(w.resultsAbs, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isResults(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
