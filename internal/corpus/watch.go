package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"vinobench/internal/logging"
)

// settleDelay is how long a newly created file must stay quiet before it
// is reported. Copies into the watched directory arrive as a create
// followed by a burst of writes.
const settleDelay = 2 * time.Second

// Watch reports image files dropped into dir until ctx is cancelled. Each
// settled file is sent on the returned channel exactly once; the channel
// closes when the watcher stops.
func Watch(ctx context.Context, dir string, logger *slog.Logger) (<-chan Image, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	logger = logging.NewComponentLogger(logger, "corpus")

	images := make(chan Image)
	go func() {
		defer close(images)
		defer watcher.Close()

		pending := make(map[string]*time.Timer)
		settled := make(chan string)

		for {
			select {
			case <-ctx.Done():
				for _, timer := range pending {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				name := filepath.Base(event.Name)
				if !IsImageFile(name) {
					continue
				}
				// Restart the settle timer on every write burst.
				if timer, ok := pending[event.Name]; ok {
					timer.Reset(settleDelay)
					continue
				}
				path := event.Name
				pending[path] = time.AfterFunc(settleDelay, func() {
					select {
					case settled <- path:
					case <-ctx.Done():
					}
				})
			case path := <-settled:
				delete(pending, path)
				img := Image{Name: filepath.Base(path), Path: path}
				select {
				case images <- img:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error", logging.Error(err))
			}
		}
	}()
	return images, nil
}
