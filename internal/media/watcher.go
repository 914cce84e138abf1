package media

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"

	"photosphere/internal/database"
	"photosphere/internal/logging"
)

// PathResolver maps a filesystem path back to its catalog record.
type PathResolver interface {
	GetPhotoByPath(ctx context.Context, path string) (*database.Photo, error)
}

// Watcher invalidates cached thumbnails when source files change on
// disk underneath the catalog.
type Watcher struct {
	fs       *fsnotify.Watcher
	resolver PathResolver
	svc      *Service

	closeOnce sync.Once
	done      chan struct{}
}

func NewWatcher(resolver PathResolver, svc *Service) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fs,
		resolver: resolver,
		svc:      svc,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// WatchDir adds a directory of cataloged photos to the watch set.
func (w *Watcher) WatchDir(dir string) error {
	logging.Debug("Watching %s for source changes", dir)
	return w.fs.Add(dir)
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn("Watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	ctx := context.Background()
	photo, err := w.resolver.GetPhotoByPath(ctx, event.Name)
	if err != nil {
		// Not a cataloged file.
		return
	}

	logging.Debug("Source changed, invalidating thumbnail for photo %d (%s)", photo.ID, event.Name)
	w.svc.Invalidate(ctx, photo.ID)
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}
