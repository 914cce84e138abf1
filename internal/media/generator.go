package media

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photosphere/internal/database"
	"photosphere/internal/logging"
	"photosphere/internal/metrics"
	"photosphere/internal/workers"
)

const (
	thumbnailQuality = 85
	jobQueueSize     = 256
)

// Index is the catalog-side view of the thumbnail cache.
type Index interface {
	GetThumbnail(ctx context.Context, photoID int64) (*database.ThumbnailEntry, error)
	PutThumbnail(ctx context.Context, photoID int64, cachePath string, sourceModTime time.Time) error
	DeleteThumbnail(ctx context.Context, photoID int64) error
	AllThumbnails(ctx context.Context) ([]database.ThumbnailEntry, error)
	OrphanedThumbnails(ctx context.Context) ([]database.ThumbnailEntry, error)
}

type job struct {
	photoID     int64
	sourcePath  string
	orientation int
}

// Service owns the thumbnail cache directory and the worker pool that
// fills it. Completion events arrive through the deliver callback in
// debounced batches; requests never block on generation.
type Service struct {
	cacheDir string
	bound    int
	useVips  bool
	index    Index
	batcher  *batcher

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[int64]struct{}
	closed   bool
}

// NewService creates a thumbnail service and starts its worker pool.
// bound is the maximum edge length of generated thumbnails; useVips
// selects the libvips decode path when the probe succeeded at startup;
// maxWorkers caps the pool size.
func NewService(index Index, cacheDir string, bound int, useVips bool, batchWindow time.Duration, maxWorkers int, deliver func([]Event)) (*Service, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cacheDir: cacheDir,
		bound:    bound,
		useVips:  useVips,
		index:    index,
		batcher:  newBatcher(batchWindow, deliver),
		jobs:     make(chan job, jobQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		inflight: map[int64]struct{}{},
	}

	count := workers.ForCPU(maxWorkers)
	logging.Debug("Thumbnail service: %d workers, bound %dpx, cache %s", count, bound, cacheDir)
	for i := 0; i < count; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s, nil
}

// CachePath returns the cache file location for a photo.
func (s *Service) CachePath(photoID int64) string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("%d.jpg", photoID))
}

// Request asks for a thumbnail of the given photo. A valid cached
// thumbnail is reported immediately through the event batcher; anything
// else is scheduled for generation. The call never blocks on decoding.
func (s *Service) Request(ctx context.Context, photoID int64, sourcePath string, orientation int) {
	if entry, err := s.index.GetThumbnail(ctx, photoID); err == nil {
		if s.cacheValid(entry, sourcePath) {
			metrics.ThumbnailRequestsTotal.WithLabelValues("cache_hit").Inc()
			s.batcher.add(Event{PhotoID: photoID, CachePath: entry.CachePath})
			return
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, busy := s.inflight[photoID]; busy {
		s.mu.Unlock()
		metrics.ThumbnailRequestsTotal.WithLabelValues("coalesced").Inc()
		return
	}
	s.inflight[photoID] = struct{}{}

	// The enqueue happens under the mutex so Close cannot close the
	// channel between the closed check and the send.
	select {
	case s.jobs <- job{photoID: photoID, sourcePath: sourcePath, orientation: orientation}:
		s.mu.Unlock()
		metrics.ThumbnailRequestsTotal.WithLabelValues("scheduled").Inc()
		metrics.ThumbnailsInFlight.Inc()
	default:
		delete(s.inflight, photoID)
		s.mu.Unlock()
		logging.Warn("Thumbnail queue full, dropping request for photo %d", photoID)
	}
}

// cacheValid checks that the cache file still exists and the source has
// not been modified since the thumbnail was generated.
func (s *Service) cacheValid(entry *database.ThumbnailEntry, sourcePath string) bool {
	if _, err := os.Stat(entry.CachePath); err != nil {
		return false
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	return info.ModTime().Unix() == entry.SourceModTime.Unix()
}

// Invalidate drops the cached thumbnail for a photo, removing both the
// cache file and the index entry.
func (s *Service) Invalidate(ctx context.Context, photoID int64) {
	if entry, err := s.index.GetThumbnail(ctx, photoID); err == nil {
		if err := os.Remove(entry.CachePath); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove thumbnail %s: %v", entry.CachePath, err)
		}
	}
	if err := s.index.DeleteThumbnail(ctx, photoID); err != nil {
		logging.Warn("Failed to delete thumbnail entry for photo %d: %v", photoID, err)
	}
}

// Close stops the worker pool and flushes pending events. Requests
// arriving after Close are ignored; closing twice is safe.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	close(s.jobs)
	s.wg.Wait()
	s.batcher.close()
}

func (s *Service) worker() {
	defer s.wg.Done()

	for j := range s.jobs {
		if s.ctx.Err() != nil {
			s.clearInflight(j.photoID)
			metrics.ThumbnailsInFlight.Dec()
			continue
		}
		s.generate(j)
	}
}

func (s *Service) generate(j job) {
	defer metrics.ThumbnailsInFlight.Dec()
	defer s.clearInflight(j.photoID)

	start := time.Now()
	cachePath, err := s.generateFile(j)
	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		logging.Warn("Thumbnail generation failed for %s: %v", j.sourcePath, err)
		s.batcher.add(Event{PhotoID: j.photoID, Err: err})
		return
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues("success").Inc()
	s.batcher.add(Event{PhotoID: j.photoID, CachePath: cachePath})
}

func (s *Service) generateFile(j job) (string, error) {
	info, err := os.Stat(j.sourcePath)
	if err != nil {
		return "", fmt.Errorf("source not accessible: %w", err)
	}

	img, err := s.decode(j)
	if err != nil {
		return "", err
	}

	thumb := imaging.Fit(img, s.bound, s.bound, imaging.Lanczos)

	cachePath := s.CachePath(j.photoID)
	f, err := os.Create(cachePath)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := jpeg.Encode(f, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close cache file: %w", err)
	}

	// Index after the file is on disk. A crash between the two leaves
	// an unindexed file for the garbage collector, never a dangling
	// index entry.
	if err := s.index.PutThumbnail(s.ctx, j.photoID, cachePath, info.ModTime()); err != nil {
		return "", fmt.Errorf("failed to index thumbnail: %w", err)
	}

	return cachePath, nil
}

// decode loads the source image upright. vips applies the EXIF
// orientation itself; the pure-Go path decodes raw pixels and applies
// the cataloged orientation afterwards.
func (s *Service) decode(j job) (image.Image, error) {
	if s.useVips {
		img, err := loadImageWithVips(j.sourcePath, s.bound)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips decode failed for %s: %v, falling back", j.sourcePath, err)
	}

	f, err := os.Open(j.sourcePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", j.sourcePath, err)
	}

	return applyOrientation(img, j.orientation), nil
}

func (s *Service) clearInflight(photoID int64) {
	s.mu.Lock()
	delete(s.inflight, photoID)
	s.mu.Unlock()
}
