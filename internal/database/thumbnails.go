package database

import (
	"context"
	"time"

	"photosphere/internal/logging"
)

// GetThumbnail returns the cache index entry for a photo, or
// sql.ErrNoRows when none has been generated yet.
func (d *Database) GetThumbnail(ctx context.Context, photoID int64) (*ThumbnailEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var entry ThumbnailEntry
	var modTime, createdAt int64

	err := d.db.QueryRowContext(ctx,
		"SELECT photo_id, cache_path, source_mod_time, created_at FROM thumbnails WHERE photo_id = ?",
		photoID,
	).Scan(&entry.PhotoID, &entry.CachePath, &modTime, &createdAt)
	if err != nil {
		return nil, err
	}

	entry.SourceModTime = time.Unix(modTime, 0)
	entry.CreatedAt = time.Unix(createdAt, 0)
	return &entry, nil
}

// PutThumbnail records a freshly generated thumbnail, replacing any
// existing entry for the photo. Callers write the cache file before
// indexing it so a crash leaves at worst an unindexed file for the
// garbage collector.
func (d *Database) PutThumbnail(ctx context.Context, photoID int64, cachePath string, sourceModTime time.Time) error {
	done := observeQuery("put_thumbnail")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO thumbnails (photo_id, cache_path, source_mod_time)
		VALUES (?, ?, ?)
		ON CONFLICT(photo_id) DO UPDATE SET
			cache_path = excluded.cache_path,
			source_mod_time = excluded.source_mod_time,
			created_at = strftime('%s', 'now')
	`, photoID, cachePath, sourceModTime.Unix())
	done(err)
	return err
}

// DeleteThumbnail removes the index entry for a photo. The cache file
// itself is the caller's responsibility.
func (d *Database) DeleteThumbnail(ctx context.Context, photoID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE photo_id = ?", photoID)
	return err
}

// AllThumbnails returns every index entry, used by the cache garbage
// collector to reconcile the index against the files on disk.
func (d *Database) AllThumbnails(ctx context.Context) ([]ThumbnailEntry, error) {
	done := observeQuery("all_thumbnails")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT photo_id, cache_path, source_mod_time, created_at FROM thumbnails",
	)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var entries []ThumbnailEntry
	for rows.Next() {
		var entry ThumbnailEntry
		var modTime, createdAt int64
		if err := rows.Scan(&entry.PhotoID, &entry.CachePath, &modTime, &createdAt); err != nil {
			done(err)
			return nil, err
		}
		entry.SourceModTime = time.Unix(modTime, 0)
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	err = rows.Err()
	done(err)
	return entries, err
}

// OrphanedThumbnails returns index entries whose photo row no longer
// exists. With foreign keys enabled these should not accumulate, but
// catalogs created before enforcement was switched on can carry them.
func (d *Database) OrphanedThumbnails(ctx context.Context) ([]ThumbnailEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.photo_id, t.cache_path, t.source_mod_time, t.created_at
		FROM thumbnails t
		LEFT JOIN photos p ON t.photo_id = p.id
		WHERE p.id IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var entries []ThumbnailEntry
	for rows.Next() {
		var entry ThumbnailEntry
		var modTime, createdAt int64
		if err := rows.Scan(&entry.PhotoID, &entry.CachePath, &modTime, &createdAt); err != nil {
			return nil, err
		}
		entry.SourceModTime = time.Unix(modTime, 0)
		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
