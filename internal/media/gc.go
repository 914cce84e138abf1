package media

import (
	"context"
	"os"
	"path/filepath"

	"photosphere/internal/logging"
	"photosphere/internal/metrics"
)

// CollectGarbage reconciles the cache directory with the index: cache
// files nothing points at are deleted, and index entries whose file is
// gone are dropped. Run at startup, before requests arrive.
func (s *Service) CollectGarbage(ctx context.Context) (int, error) {
	removed := 0

	// Entries whose photo is gone. Foreign keys keep these from
	// accumulating in current catalogs, but older ones can carry them.
	orphans, err := s.index.OrphanedThumbnails(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range orphans {
		if err := os.Remove(e.CachePath); err != nil && !os.IsNotExist(err) {
			logging.Warn("GC failed to remove %s: %v", e.CachePath, err)
		}
		if err := s.index.DeleteThumbnail(ctx, e.PhotoID); err != nil {
			logging.Warn("GC failed to drop entry for photo %d: %v", e.PhotoID, err)
			continue
		}
		removed++
	}

	entries, err := s.index.AllThumbnails(ctx)
	if err != nil {
		return 0, err
	}

	indexed := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		indexed[filepath.Clean(e.CachePath)] = struct{}{}
	}

	files, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Clean(filepath.Join(s.cacheDir, f.Name()))
		if _, ok := indexed[path]; ok {
			continue
		}
		if err := os.Remove(path); err != nil {
			logging.Warn("GC failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}

	for _, e := range entries {
		if _, err := os.Stat(e.CachePath); err == nil {
			continue
		}
		if err := s.index.DeleteThumbnail(ctx, e.PhotoID); err != nil {
			logging.Warn("GC failed to drop entry for photo %d: %v", e.PhotoID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ThumbnailGCRemoved.Add(float64(removed))
		logging.Info("Thumbnail GC removed %d orphaned entries", removed)
	}

	return removed, nil
}
