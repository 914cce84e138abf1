package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"photosphere/internal/logging"
)

// GetOrCreateTag returns the existing tag with the given name
// (case-insensitively) or creates a new one.
func (d *Database) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name cannot be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var tag Tag
	var createdAt int64
	var color sql.NullString

	err := d.db.QueryRowContext(ctx,
		"SELECT id, name, color, created_at FROM tags WHERE name = ? COLLATE NOCASE",
		name,
	).Scan(&tag.ID, &tag.Name, &color, &createdAt)

	if err == nil {
		tag.CreatedAt = time.Unix(createdAt, 0)
		tag.Color = color.String
		return &tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	result, err := d.db.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	tag.ID, _ = result.LastInsertId()
	tag.Name = name
	tag.CreatedAt = time.Now()
	return &tag, nil
}

// GetAllTags returns all tags with their photo counts, ordered by name.
func (d *Database) GetAllTags(ctx context.Context) ([]Tag, error) {
	done := observeQuery("get_all_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_at, COUNT(pt.id) AS photo_count
		FROM tags t
		LEFT JOIN photo_tags pt ON t.id = pt.tag_id
		GROUP BY t.id
		ORDER BY t.name COLLATE NOCASE
	`)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var createdAt int64
		var color sql.NullString

		if err := rows.Scan(&tag.ID, &tag.Name, &color, &createdAt, &tag.PhotoCount); err != nil {
			done(err)
			return nil, err
		}
		tag.CreatedAt = time.Unix(createdAt, 0)
		tag.Color = color.String
		tags = append(tags, tag)
	}

	err = rows.Err()
	done(err)
	return tags, err
}

// DeleteTag removes a tag and its photo associations. Photos themselves
// are never touched. Returns whether a tag row was removed.
func (d *Database) DeleteTag(ctx context.Context, id int64) (bool, error) {
	done := observeQuery("delete_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.ExecContext(ctx, "DELETE FROM photo_tags WHERE tag_id = ?", id); err != nil {
		done(err)
		return false, err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		done(err)
		return false, err
	}
	rowsAffected, _ := result.RowsAffected()

	err = tx.Commit()
	done(err)
	return rowsAffected > 0, err
}

// RenameTag renames a tag. If the new name already belongs to another
// tag, the two are merged: associations move to the surviving tag and
// the old tag is deleted.
func (d *Database) RenameTag(ctx context.Context, id int64, newName string) error {
	done := observeQuery("rename_tag")

	newName = strings.TrimSpace(newName)
	if newName == "" {
		err := errors.New("tag name cannot be empty")
		done(err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM tags WHERE name = ? COLLATE NOCASE", newName,
	).Scan(&existingID)

	switch {
	case err == nil && existingID != id:
		// Merge into the existing tag, skipping duplicate pairs.
		if _, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO photo_tags (photo_id, tag_id, created_at)
			SELECT photo_id, ?, created_at FROM photo_tags WHERE tag_id = ?
		`, existingID, id); err != nil {
			done(err)
			return fmt.Errorf("failed to merge tag associations: %w", err)
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM photo_tags WHERE tag_id = ?", id); err != nil {
			done(err)
			return err
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id); err != nil {
			done(err)
			return err
		}
	case err == nil || errors.Is(err, sql.ErrNoRows):
		// Plain rename (including case-only changes to the same tag).
		if _, err = tx.ExecContext(ctx, "UPDATE tags SET name = ? WHERE id = ?", newName, id); err != nil {
			done(err)
			return fmt.Errorf("failed to rename tag: %w", err)
		}
	default:
		done(err)
		return err
	}

	err = tx.Commit()
	done(err)
	return err
}

// SetTagColor sets the display color for a tag.
func (d *Database) SetTagColor(ctx context.Context, id int64, color string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, "UPDATE tags SET color = ? WHERE id = ?", color, id)
	return err
}

// AssignTag associates a tag with a photo. Assignment is idempotent:
// assigning an already-assigned tag is not an error.
func (d *Database) AssignTag(ctx context.Context, photoID, tagID int64) error {
	done := observeQuery("assign_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO photo_tags (photo_id, tag_id) VALUES (?, ?)",
		photoID, tagID,
	)
	done(err)
	return err
}

// UnassignTag removes a tag association from a photo.
func (d *Database) UnassignTag(ctx context.Context, photoID, tagID int64) error {
	done := observeQuery("unassign_tag")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"DELETE FROM photo_tags WHERE photo_id = ? AND tag_id = ?",
		photoID, tagID,
	)
	done(err)
	return err
}

// SetPhotoTags atomically replaces a photo's tag set with tagIDs. The
// delete and inserts share one transaction so an interrupted call never
// leaves a partial union of old and new tags.
func (d *Database) SetPhotoTags(ctx context.Context, photoID int64, tagIDs []int64) error {
	done := observeQuery("set_photo_tags")

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		done(err)
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.ExecContext(ctx, "DELETE FROM photo_tags WHERE photo_id = ?", photoID); err != nil {
		done(err)
		return err
	}

	for _, tagID := range tagIDs {
		if _, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO photo_tags (photo_id, tag_id) VALUES (?, ?)",
			photoID, tagID,
		); err != nil {
			done(err)
			return err
		}
	}

	err = tx.Commit()
	done(err)
	return err
}

// GetPhotoTags returns all tags assigned to a photo, ordered by name.
func (d *Database) GetPhotoTags(ctx context.Context, photoID int64) ([]Tag, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color, t.created_at
		FROM tags t
		INNER JOIN photo_tags pt ON t.id = pt.tag_id
		WHERE pt.photo_id = ?
		ORDER BY t.name COLLATE NOCASE
	`, photoID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var createdAt int64
		var color sql.NullString
		if err := rows.Scan(&tag.ID, &tag.Name, &color, &createdAt); err != nil {
			return nil, err
		}
		tag.CreatedAt = time.Unix(createdAt, 0)
		tag.Color = color.String
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// CommonTags returns the tags assigned to every photo in photoIDs, used
// to render tri-state tag pickers for multi-selection. An empty input
// yields an empty result.
func (d *Database) CommonTags(ctx context.Context, photoIDs []int64) ([]Tag, error) {
	if len(photoIDs) == 0 {
		return nil, nil
	}

	done := observeQuery("common_tags")

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Deduplicate so repeated ids cannot inflate the count the HAVING
	// clause compares against.
	seen := make(map[int64]struct{}, len(photoIDs))
	ids := make([]int64, 0, len(photoIDs))
	for _, id := range photoIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, len(ids))

	// A tag is common when its assignment count over the distinct input
	// ids equals the set size. The pair-unique constraint makes COUNT
	// equivalent to COUNT DISTINCT here.
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.id, t.name, t.color, t.created_at
		FROM tags t
		INNER JOIN photo_tags pt ON t.id = pt.tag_id
		WHERE pt.photo_id IN (%s)
		GROUP BY t.id
		HAVING COUNT(pt.photo_id) = ?
		ORDER BY t.name COLLATE NOCASE
	`, placeholders), args...)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		var createdAt int64
		var color sql.NullString
		if err := rows.Scan(&tag.ID, &tag.Name, &color, &createdAt); err != nil {
			done(err)
			return nil, err
		}
		tag.CreatedAt = time.Unix(createdAt, 0)
		tag.Color = color.String
		tags = append(tags, tag)
	}

	err = rows.Err()
	done(err)
	return tags, err
}
