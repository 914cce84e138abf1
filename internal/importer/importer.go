// Package importer walks files into the catalog, extracting metadata
// one file at a time and reporting progress as it goes.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photosphere/internal/database"
	"photosphere/internal/exif"
	"photosphere/internal/logging"
	"photosphere/internal/metrics"
)

// decodableExts lists the still-image formats the pure-Go decoders can
// always open. recognizedExts lists formats known to be images but
// needing libvips; those are still cataloged with best-effort metadata,
// and flagged through the unsupported warning list when vips is absent.
var (
	decodableExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	}
	recognizedExts = map[string]bool{
		".heic": true, ".heif": true, ".avif": true, ".jxl": true,
		".raw": true, ".cr2": true, ".nef": true, ".arw": true, ".dng": true,
	}
)

// Events carries the import pipeline's progress callbacks. Any field
// may be nil.
type Events struct {
	// Progress reports completion after each file as a whole
	// percentage, 0 to 100.
	Progress func(percent, current, total int)
	// ItemImported fires once per successfully cataloged photo.
	ItemImported func(photo *database.Photo)
	// ItemFailed fires once per file that could not be imported.
	ItemFailed func(filename, reason string)
	// Unsupported fires at most once per run, before Finished, naming
	// recognized formats this build has no decoder for.
	Unsupported func(files []string)
	// Finished fires exactly once per run, including cancelled runs.
	Finished func(imported, total int)
}

// Summary totals one import run.
type Summary struct {
	Imported    int
	Failed      int
	Total       int
	Unsupported []string
}

// Catalog is the storage surface the importer needs.
type Catalog interface {
	InsertPhoto(ctx context.Context, p *database.Photo) (int64, error)
}

type Importer struct {
	catalog Catalog
	useVips bool
	events  Events
}

// New builds an importer. useVips reports whether the libvips codec
// probe succeeded at startup; builds without it flag recognized but
// undecodable formats on the unsupported warning channel.
func New(catalog Catalog, useVips bool, events Events) *Importer {
	return &Importer{catalog: catalog, useVips: useVips, events: events}
}

// Run imports the given files sequentially. A failed file never aborts
// the run; cancellation stops between files and still reports Finished
// with the counts so far.
func (im *Importer) Run(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	defer func() {
		metrics.ImportBatchDuration.Observe(time.Since(start).Seconds())
	}()

	summary := &Summary{Total: len(paths)}
	defer func() {
		if im.events.Unsupported != nil && len(summary.Unsupported) > 0 {
			im.events.Unsupported(summary.Unsupported)
		}
		if im.events.Finished != nil {
			im.events.Finished(summary.Imported, summary.Total)
		}
	}()

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			logging.Info("Import cancelled after %d of %d files", i, len(paths))
			return summary, err
		}

		if err := im.importOne(ctx, path, summary); err != nil {
			summary.Failed++
			logging.Warn("Import failed for %s: %v", path, err)
			if im.events.ItemFailed != nil {
				im.events.ItemFailed(filepath.Base(path), err.Error())
			}
		}

		if im.events.Progress != nil {
			im.events.Progress((i+1)*100/len(paths), i+1, len(paths))
		}
	}

	logging.Info("Import finished: %d imported, %d failed of %d total",
		summary.Imported, summary.Failed, summary.Total)
	return summary, nil
}

func (im *Importer) importOne(ctx context.Context, path string, summary *Summary) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !decodableExts[ext] && !recognizedExts[ext] {
		metrics.ImportFilesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("not an image format: %q", ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		metrics.ImportFilesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("file not accessible: %w", err)
	}

	meta, err := exif.Extract(path)
	unsupported := false
	if err != nil {
		if decodableExts[ext] {
			metrics.ImportFilesTotal.WithLabelValues("failed").Inc()
			return err
		}
		// A recognized format the pure-Go decoders cannot open. Catalog
		// the basics rather than failing the file; without vips the
		// format is undecodable by this build, so flag it too.
		meta = &exif.Metadata{Orientation: 1, Tags: map[string]interface{}{}}
		if im.useVips {
			logging.Debug("No embedded metadata readable in %s, cataloging with basic fields", path)
		} else {
			unsupported = true
			logging.Warn("No codec for %s, cataloging with basic metadata only", path)
		}
	}

	photo := &database.Photo{
		Filename:     filepath.Base(path),
		Filepath:     path,
		FileSize:     info.Size(),
		DateTaken:    meta.DateTaken,
		CameraMake:   meta.CameraMake,
		CameraModel:  meta.CameraModel,
		LensModel:    meta.LensModel,
		FocalLength:  meta.FocalLength,
		Aperture:     meta.Aperture,
		ShutterSpeed: meta.ShutterSpeed,
		ISO:          meta.ISO,
		Flash:        meta.Flash,
		Orientation:  meta.Orientation,
		Width:        meta.Width,
		Height:       meta.Height,
		GPSLatitude:  meta.GPSLatitude,
		GPSLongitude: meta.GPSLongitude,
		GPSAltitude:  meta.GPSAltitude,
		GPSLocation:  meta.GPSLocation,
		Metadata:     meta.Tags,
	}

	id, err := im.catalog.InsertPhoto(ctx, photo)
	if err != nil {
		metrics.ImportFilesTotal.WithLabelValues("failed").Inc()
		if errors.Is(err, database.ErrDuplicatePath) {
			return fmt.Errorf("already in catalog")
		}
		return err
	}
	photo.ID = id

	summary.Imported++
	if unsupported {
		summary.Unsupported = append(summary.Unsupported, filepath.Base(path))
		metrics.ImportFilesTotal.WithLabelValues("unsupported").Inc()
	} else {
		metrics.ImportFilesTotal.WithLabelValues("imported").Inc()
	}
	logging.Debug("Imported %s as photo %d", path, id)

	if im.events.ItemImported != nil {
		im.events.ItemImported(photo)
	}
	return nil
}
