package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"photosphere/internal/logging"
)

// InsertPhoto adds a photo to the catalog and returns its generated id.
// Returns ErrDuplicatePath if the filepath is already cataloged.
func (d *Database) InsertPhoto(ctx context.Context, p *Photo) (int64, error) {
	done := observeQuery("insert_photo")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		// The extractor only produces JSON-safe values; a failure here
		// means a programming error upstream, but the photo is still
		// catalogable without its raw tag map.
		logging.Warn("failed to marshal metadata for %s: %v", p.Filepath, err)
		metadataJSON = []byte("{}")
	}

	var dateTaken interface{}
	if p.DateTaken != nil {
		dateTaken = p.DateTaken.Unix()
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO photos (
			filename, filepath, file_size, date_taken, camera_make,
			camera_model, lens_model, focal_length, aperture,
			shutter_speed, iso, flash, orientation, width, height,
			gps_latitude, gps_longitude, gps_altitude, gps_location_name,
			metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Filename, p.Filepath, p.FileSize, dateTaken, nullString(p.CameraMake),
		nullString(p.CameraModel), nullString(p.LensModel), nullFloat(p.FocalLength),
		nullFloat(p.Aperture), nullString(p.ShutterSpeed), nullInt(p.ISO),
		nullString(p.Flash), nullInt(p.Orientation), nullInt(p.Width), nullInt(p.Height),
		p.GPSLatitude, p.GPSLongitude, p.GPSAltitude, nullString(p.GPSLocation),
		string(metadataJSON),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			err = fmt.Errorf("%w: %s", ErrDuplicatePath, p.Filepath)
			done(err)
			return 0, err
		}
		done(err)
		return 0, fmt.Errorf("failed to insert photo: %w", err)
	}

	id, err := result.LastInsertId()
	done(err)
	return id, err
}

// GetPhoto retrieves a photo by id. Returns sql.ErrNoRows for unknown ids.
func (d *Database) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, selectPhotoColumns+" FROM photos p WHERE id = ?", id)
	return scanPhoto(row)
}

// GetPhotoByPath retrieves a photo by its unique filepath.
func (d *Database) GetPhotoByPath(ctx context.Context, path string) (*Photo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, selectPhotoColumns+" FROM photos p WHERE filepath = ?", path)
	return scanPhoto(row)
}

// QueryPhotos returns photos matching the filter, ordered by date added
// descending (newest first) with id as tiebreaker. The order is total and
// stable so that pagination via Limit/Offset never skips or repeats rows.
func (d *Database) QueryPhotos(ctx context.Context, f Filter) ([]Photo, error) {
	done := observeQuery("query_photos")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where, args := buildPhotoFilter(f)

	query := selectPhotoColumns + " FROM photos p" + where +
		" ORDER BY p.date_added DESC, p.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var photos []Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		photos = append(photos, *p)
	}

	err = rows.Err()
	done(err)
	return photos, err
}

// PhotoCount returns the number of photos matching the filter, ignoring
// pagination.
func (d *Database) PhotoCount(ctx context.Context, f Filter) (int, error) {
	done := observeQuery("photo_count")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where, args := buildPhotoFilter(f)

	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM photos p"+where, args...).Scan(&count)
	done(err)
	return count, err
}

// DeletePhoto removes a photo and all dependent rows (tag associations,
// thumbnail cache entry) in a single transaction. It returns whether a
// row was actually removed, and the cached thumbnail path (if any) so the
// caller can reclaim the file; an unknown id is not an error.
func (d *Database) DeletePhoto(ctx context.Context, id int64) (deleted bool, thumbPath string, err error) {
	done := observeQuery("delete_photo")
	defer func() { done(err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, "", err
	}
	defer tx.Rollback() //nolint:errcheck

	var cachePath sql.NullString
	if scanErr := tx.QueryRowContext(ctx,
		"SELECT cache_path FROM thumbnails WHERE photo_id = ?", id,
	).Scan(&cachePath); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		return false, "", scanErr
	}

	// Associations before parents; the FK cascades would cover this, but
	// the explicit order keeps the invariant independent of pragma state.
	if _, err = tx.ExecContext(ctx, "DELETE FROM photo_tags WHERE photo_id = ?", id); err != nil {
		return false, "", err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM thumbnails WHERE photo_id = ?", id); err != nil {
		return false, "", err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return false, "", err
	}
	rowsAffected, _ := result.RowsAffected()

	if err = tx.Commit(); err != nil {
		return false, "", err
	}

	if cachePath.Valid {
		thumbPath = cachePath.String
	}
	return rowsAffected > 0, thumbPath, nil
}

const selectPhotoColumns = `
	SELECT p.id, p.filename, p.filepath, p.file_size, p.date_added, p.date_taken,
		p.camera_make, p.camera_model, p.lens_model, p.focal_length, p.aperture,
		p.shutter_speed, p.iso, p.flash, p.orientation, p.width, p.height,
		p.gps_latitude, p.gps_longitude, p.gps_altitude, p.gps_location_name,
		p.metadata_json`

// buildPhotoFilter translates a Filter into a WHERE clause and args.
func buildPhotoFilter(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	switch f.Tag {
	case "", TagAll:
		// no tag condition
	case TagUntagged:
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM photo_tags pt WHERE pt.photo_id = p.id)")
	default:
		conds = append(conds, `EXISTS (
			SELECT 1 FROM photo_tags pt
			INNER JOIN tags t ON pt.tag_id = t.id
			WHERE pt.photo_id = p.id AND t.name = ? COLLATE NOCASE
		)`)
		args = append(args, f.Tag)
	}

	if f.Search != "" {
		conds = append(conds, "p.filename LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var p Photo
	var dateAdded int64
	var dateTaken sql.NullInt64
	var cameraMake, cameraModel, lensModel, shutterSpeed, flash, gpsLocation sql.NullString
	var focalLength, aperture, gpsLat, gpsLon, gpsAlt sql.NullFloat64
	var iso, orientation, width, height sql.NullInt64
	var metadataJSON sql.NullString

	err := row.Scan(
		&p.ID, &p.Filename, &p.Filepath, &p.FileSize, &dateAdded, &dateTaken,
		&cameraMake, &cameraModel, &lensModel, &focalLength, &aperture,
		&shutterSpeed, &iso, &flash, &orientation, &width, &height,
		&gpsLat, &gpsLon, &gpsAlt, &gpsLocation,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	p.DateAdded = time.Unix(dateAdded, 0)
	if dateTaken.Valid {
		t := time.Unix(dateTaken.Int64, 0)
		p.DateTaken = &t
	}
	p.CameraMake = cameraMake.String
	p.CameraModel = cameraModel.String
	p.LensModel = lensModel.String
	p.ShutterSpeed = shutterSpeed.String
	p.Flash = flash.String
	p.GPSLocation = gpsLocation.String
	p.FocalLength = focalLength.Float64
	p.Aperture = aperture.Float64
	p.ISO = int(iso.Int64)
	p.Orientation = int(orientation.Int64)
	p.Width = int(width.Int64)
	p.Height = int(height.Int64)
	if gpsLat.Valid && gpsLon.Valid {
		p.GPSLatitude = &gpsLat.Float64
		p.GPSLongitude = &gpsLon.Float64
	}
	if gpsAlt.Valid {
		p.GPSAltitude = &gpsAlt.Float64
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &p.Metadata); err != nil {
			logging.Debug("unreadable metadata blob for photo %d: %v", p.ID, err)
		}
	}

	return &p, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
