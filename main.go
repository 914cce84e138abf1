package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"photosphere/internal/database"
	"photosphere/internal/importer"
	"photosphere/internal/logging"
	"photosphere/internal/media"
	"photosphere/internal/metrics"
	"photosphere/internal/startup"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Refresh catalog gauges periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				db.UpdateDBMetrics()
				if count, err := db.PhotoCount(ctx, database.Filter{Tag: database.TagAll}); err == nil {
					metrics.PhotosCataloged.Set(float64(count))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Probe libvips for extended codec support
	if config.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using pure-Go decoding: %v", err)
		}
		defer media.ShutdownVips()
	}
	vipsOK := media.IsVipsAvailable()

	// Thumbnail service with batched completion delivery
	thumbs, err := media.NewService(db, config.ThumbnailDir, config.ThumbnailBound,
		vipsOK, config.BatchWindow, config.MaxGenerators,
		func(batch []media.Event) {
			for _, e := range batch {
				if e.Err != nil {
					logging.Warn("Thumbnail failed for photo %d: %v", e.PhotoID, e.Err)
					continue
				}
				logging.Debug("Thumbnail ready: photo %d -> %s", e.PhotoID, e.CachePath)
			}
		})
	if err != nil {
		startup.LogFatal("Failed to start thumbnail service: %v", err)
	}
	defer thumbs.Close()

	if removed, err := thumbs.CollectGarbage(ctx); err != nil {
		logging.Warn("Thumbnail GC failed: %v", err)
	} else if removed > 0 {
		logging.Debug("Startup GC reclaimed %d thumbnail entries", removed)
	}

	// Watch source directories so edits invalidate stale thumbnails
	watcher, err := media.NewWatcher(db, thumbs)
	if err != nil {
		logging.Warn("Source watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	logging.Info("Catalog engine ready in %v", time.Since(startTime))

	// Import any paths given on the command line, generating thumbnails
	// for each new photo as it lands.
	if paths := os.Args[1:]; len(paths) > 0 {
		runImport(ctx, db, thumbs, watcher, vipsOK, paths)
	}

	<-ctx.Done()
	startup.LogShutdownInitiated("signal")
	startup.LogShutdownComplete()
}

func runImport(ctx context.Context, db *database.Database, thumbs *media.Service, watcher *media.Watcher, vipsOK bool, paths []string) {
	watched := map[string]bool{}

	imp := importer.New(db, vipsOK, importer.Events{
		Progress: func(percent, current, total int) {
			logging.Info("Import progress: %d%% (%d/%d)", percent, current, total)
		},
		ItemImported: func(p *database.Photo) {
			thumbs.Request(ctx, p.ID, p.Filepath, p.Orientation)
			if watcher == nil {
				return
			}
			dir := filepath.Dir(p.Filepath)
			if !watched[dir] {
				if err := watcher.WatchDir(dir); err != nil {
					logging.Warn("Failed to watch %s: %v", dir, err)
				}
				watched[dir] = true
			}
		},
		ItemFailed: func(filename, reason string) {
			logging.Warn("Skipped %s: %s", filename, reason)
		},
		Unsupported: func(files []string) {
			logging.Warn("Cataloged without decoding (no codec): %s", strings.Join(files, ", "))
		},
		Finished: func(imported, total int) {
			logging.Info("Import complete: %d of %d files cataloged", imported, total)
		},
	})

	if _, err := imp.Run(ctx, paths); err != nil {
		logging.Warn("Import interrupted: %v", err)
	}
}
