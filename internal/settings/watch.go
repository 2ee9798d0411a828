package settings

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
)

// settleDelay is how long the file must be quiet before it is reread, so an
// editor writing in place is read once it has finished.
const settleDelay = 150 * time.Millisecond

// Watch rereads the settings file whenever it changes on disk and calls
// onChange with the new config if any tunable differs from what was last
// read or committed. Commits made through this Store do not trigger onChange.
// It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// replace the file on save, and Commit's rename, are still picked up.
func (s *Store) Watch(ctx context.Context, onChange func(logic.Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	target := filepath.Clean(s.path)

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				settle.Reset(settleDelay)
			}

		case <-settle.C:
			s.rereadAndNotify(onChange)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("settings: watcher error: %v", err)
		}
	}
}

func (s *Store) rereadAndNotify(onChange func(logic.Config)) {
	changed, err := s.Reread()
	if err != nil {
		log.Printf("settings: reload failed: %v", err)
		return
	}
	if !changed {
		return
	}
	cfg := s.Config()
	log.Printf("settings: reloaded from %s: threshold=%v count=%d enabled=%v",
		s.path, cfg.TimeThreshold, cfg.DirectionChangeCount, cfg.Enabled)
	onChange(cfg)
}
