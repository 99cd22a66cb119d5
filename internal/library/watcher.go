package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/sidecar"
)

// DefaultDebounce is how long the watcher waits for a file to settle before
// registering it.
const DefaultDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the media folder and registers files
// as they appear or change until ctx is cancelled. Editing a sidecar
// re-registers its media file. Removals and renames only schedule a
// reconciling Sync so that renamed files are picked up under their new name.
//
// New directories created at runtime are added to the watch list.
func (s *Service) Watch(ctx context.Context, root string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	s.log.Info("watcher: started", slog.String("root", root))

	// Writes arrive in bursts while a file is copied in; collect them and
	// register once the burst is over.
	pending := make(map[string]struct{})
	reconcile := false
	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(DefaultDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(DefaultDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.log.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for rel := range pending {
				s.importPending(ctx, rel)
			}
			clear(pending)
			if reconcile {
				reconcile = false
				if _, err := s.Sync(ctx); err != nil {
					s.log.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name
			if hidden(filepath.Base(abs)) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, abs); addErr != nil {
						s.log.Warn("watcher: add new dir failed",
							slog.String("path", abs),
							slog.String("error", addErr.Error()))
					}
					// Files may have landed before the directory was watched.
					reconcile = true
					schedule()
					continue
				}
			}

			rel, relErr := filepath.Rel(root, abs)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if sidecar.IsSidecar(rel) {
				rel = strings.TrimSuffix(rel, sidecar.Ext)
			} else if !models.IsMedia(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = struct{}{}
				schedule()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				s.log.Info("watcher: file gone, asset kept", slog.String("path", rel))
				reconcile = true
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (s *Service) importPending(ctx context.Context, rel string) {
	if !s.store.Exists(rel) {
		return
	}
	asset, changed, err := s.ImportFile(ctx, rel)
	if err != nil {
		s.log.Warn("watcher: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if changed {
		s.log.Debug("watcher: registered", slog.String("path", rel), slog.String("asset_id", asset.ID))
	}
}

// hidden matches dotfiles, including the storage layer's temp files.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
