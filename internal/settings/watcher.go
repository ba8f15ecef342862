package settings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of write events editors produce when
// saving a file.
const reloadDebounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on a settings file and calls onReload with
// the re-decoded record after each external change, until ctx is cancelled.
// Decode failures keep the previous record and are logged only; a half-written
// file must never wipe the user's settings.
func Watch(ctx context.Context, store *FileStore, log *bolt.Logger, onReload func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors replace files via rename, which drops a
	// watch placed on the file itself.
	dir := filepath.Dir(store.Path())
	if err := w.Add(dir); err != nil {
		return err
	}

	log.Debug().Str("path", store.Path()).Msg("settings watcher started")

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDebounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			log.Debug().Msg("settings watcher stopped")
			return nil

		case <-reloadCh:
			data, readErr := store.LoadData()
			if readErr != nil {
				log.Warn().Err(readErr).Msg("settings reload read failed")
				continue
			}
			s, decErr := Decode(data)
			if decErr != nil {
				log.Warn().Err(decErr).Msg("settings reload decode failed")
				continue
			}
			log.Debug().Msg("settings reloaded from disk")
			onReload(s)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != store.Path() {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(watchErr).Msg("settings watcher error")
		}
	}
}
