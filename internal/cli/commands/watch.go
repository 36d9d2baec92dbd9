package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	intconfig "github.com/leapstack-labs/skuhub/internal/config"
	"github.com/leapstack-labs/skuhub/internal/source"
)

// fingerprintStore remembers the content hash of each source file.
type fingerprintStore interface {
	GetContentHash(filePath string) (string, error)
	SetContentHash(filePath, hash, source string) error
}

// sourceWatcher re-runs reconciliation when a source file's content changes.
// Runs are serialized; events arriving during a run coalesce into one more.
type sourceWatcher struct {
	paths    map[string]string // cleaned path -> dataset name
	store    fingerprintStore
	debounce time.Duration
	run      func(ctx context.Context) error
	logger   *slog.Logger
}

func newSourceWatcher(paths map[string]string, store fingerprintStore, debounce time.Duration, run func(ctx context.Context) error, logger *slog.Logger) *sourceWatcher {
	if debounce <= 0 {
		debounce = intconfig.DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cleaned := make(map[string]string, len(paths))
	for p, name := range paths {
		cleaned[filepath.Clean(p)] = name
	}
	return &sourceWatcher{paths: cleaned, store: store, debounce: debounce, run: run, logger: logger}
}

// changed returns the sources whose content differs from the last
// recorded fingerprint. Unreadable files are skipped.
func (w *sourceWatcher) changed() []string {
	var out []string
	for path, name := range w.paths {
		hash, err := source.Fingerprint(path)
		if err != nil {
			w.logger.Debug("cannot fingerprint source", "path", path, "error", err)
			continue
		}
		prev, err := w.store.GetContentHash(path)
		if err != nil {
			w.logger.Warn("failed to read fingerprint", "path", path, "error", err)
		}
		if hash != prev {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// cycle runs once when any source changed.
func (w *sourceWatcher) cycle(ctx context.Context) (bool, error) {
	changed := w.changed()
	if len(changed) == 0 {
		w.logger.Info("sources unchanged, skipping run")
		return false, nil
	}
	w.logger.Info("sources changed", "sources", changed)
	return true, w.run(ctx)
}

// Watch runs a first cycle, then one cycle per debounced change until ctx
// is cancelled. Run failures are logged and watching continues.
func (w *sourceWatcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	// Watch directories so editors that replace files are still seen.
	dirs := make(map[string]bool)
	for path := range w.paths {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Error("failed to watch directory", "dir", dir, "error", err)
		}
	}

	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}
	notify := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var debounceTimer *time.Timer
		defer func() {
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}()
		for {
			select {
			case <-egctx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if _, watched := w.paths[filepath.Clean(event.Name)]; !watched {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(w.debounce, notify)
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Error("watcher error", "error", err)
			}
		}
	})

	eg.Go(func() error {
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-trigger:
				if _, err := w.cycle(egctx); err != nil {
					w.logger.Error("reconciliation failed", "error", err)
				}
			}
		}
	})

	return eg.Wait()
}
