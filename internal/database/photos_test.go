package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestInsertAndGetPhoto(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	taken := time.Date(2022, 3, 9, 8, 15, 0, 0, time.UTC)
	lat, lon, alt := 48.8584, 2.2945, 35.0
	p := &Photo{
		Filename:     "tower.jpg",
		Filepath:     "/photos/paris/tower.jpg",
		FileSize:     4_123_456,
		DateTaken:    &taken,
		CameraMake:   "Nikon",
		CameraModel:  "Z7 II",
		LensModel:    "NIKKOR Z 24-70mm f/2.8 S",
		FocalLength:  35,
		Aperture:     2.8,
		ShutterSpeed: "1/250",
		ISO:          100,
		Flash:        "16",
		Orientation:  6,
		Width:        8256,
		Height:       5504,
		GPSLatitude:  &lat,
		GPSLongitude: &lon,
		GPSAltitude:  &alt,
		GPSLocation:  "Paris",
		Metadata: map[string]interface{}{
			"WhiteBalance": "Auto",
			"Software":     "NX Studio",
		},
	}

	id, err := db.InsertPhoto(ctx, p)
	if err != nil {
		t.Fatalf("InsertPhoto failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero photo ID")
	}

	got, err := db.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}

	if got.Filename != "tower.jpg" || got.Filepath != "/photos/paris/tower.jpg" {
		t.Errorf("Unexpected identity fields: %+v", got)
	}
	if got.DateTaken == nil || !got.DateTaken.Equal(taken) {
		t.Errorf("Expected date taken %v, got %v", taken, got.DateTaken)
	}
	if got.Orientation != 6 {
		t.Errorf("Expected orientation 6, got %d", got.Orientation)
	}
	if got.GPSLatitude == nil || *got.GPSLatitude != lat {
		t.Errorf("Expected latitude %v, got %v", lat, got.GPSLatitude)
	}
	if got.GPSAltitude == nil || *got.GPSAltitude != alt {
		t.Errorf("Expected altitude %v, got %v", alt, got.GPSAltitude)
	}
	if got.Metadata["WhiteBalance"] != "Auto" {
		t.Errorf("Expected metadata to round-trip, got %v", got.Metadata)
	}
	if got.DateAdded.IsZero() {
		t.Error("Expected date added to be set")
	}

	byPath, err := db.GetPhotoByPath(ctx, "/photos/paris/tower.jpg")
	if err != nil {
		t.Fatalf("GetPhotoByPath failed: %v", err)
	}
	if byPath.ID != id {
		t.Errorf("Expected ID %d from path lookup, got %d", id, byPath.ID)
	}
}

func TestInsertDuplicatePath(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	mustInsert(t, db, "/photos/dup.jpg")

	_, err := db.InsertPhoto(ctx, testPhoto("/photos/dup.jpg"))
	if !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("Expected ErrDuplicatePath, got %v", err)
	}

	count, err := db.PhotoCount(ctx, Filter{Tag: TagAll})
	if err != nil {
		t.Fatalf("PhotoCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 photo after duplicate insert, got %d", count)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	db, _ := setupTestDB(t)

	if _, err := db.GetPhoto(context.Background(), 9999); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
	if _, err := db.GetPhotoByPath(context.Background(), "/nope.jpg"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryPhotosOrderingAndPagination(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, mustInsert(t, db, fmt.Sprintf("/photos/p%d.jpg", i)))
	}

	// Insertion timestamps share a second, so the id tiebreaker decides:
	// newest insert first.
	photos, err := db.QueryPhotos(ctx, Filter{Tag: TagAll})
	if err != nil {
		t.Fatalf("QueryPhotos failed: %v", err)
	}
	if len(photos) != 5 {
		t.Fatalf("Expected 5 photos, got %d", len(photos))
	}
	for i := range photos {
		if photos[i].ID != ids[len(ids)-1-i] {
			t.Fatalf("Unexpected order at %d: got ID %d", i, photos[i].ID)
		}
	}

	page, err := db.QueryPhotos(ctx, Filter{Tag: TagAll, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("QueryPhotos with pagination failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 photos on page, got %d", len(page))
	}
	if page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Errorf("Unexpected page contents: %d, %d", page[0].ID, page[1].ID)
	}
}

func TestQueryPhotosSearchEscapesWildcards(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	mustInsert(t, db, "/photos/100%.jpg")
	mustInsert(t, db, "/photos/100x.jpg")
	mustInsert(t, db, "/photos/sunset.jpg")

	photos, err := db.QueryPhotos(ctx, Filter{Tag: TagAll, Search: "100%"})
	if err != nil {
		t.Fatalf("QueryPhotos failed: %v", err)
	}
	if len(photos) != 1 || photos[0].Filename != "100%.jpg" {
		t.Errorf("Expected only literal match for '100%%', got %d results", len(photos))
	}

	// Case-insensitive substring search.
	photos, err = db.QueryPhotos(ctx, Filter{Tag: TagAll, Search: "SUN"})
	if err != nil {
		t.Fatalf("QueryPhotos failed: %v", err)
	}
	if len(photos) != 1 || photos[0].Filename != "sunset.jpg" {
		t.Errorf("Expected sunset.jpg for 'SUN', got %d results", len(photos))
	}
}

func TestQueryPhotosByTag(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	tagged := mustInsert(t, db, "/photos/tagged.jpg")
	untagged := mustInsert(t, db, "/photos/untagged.jpg")

	tag, err := db.GetOrCreateTag(ctx, "Vacation")
	if err != nil {
		t.Fatalf("GetOrCreateTag failed: %v", err)
	}
	if err := db.AssignTag(ctx, tagged, tag.ID); err != nil {
		t.Fatalf("AssignTag failed: %v", err)
	}

	photos, err := db.QueryPhotos(ctx, Filter{Tag: "vacation"})
	if err != nil {
		t.Fatalf("QueryPhotos by tag failed: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != tagged {
		t.Errorf("Expected only tagged photo for case-insensitive tag filter, got %d results", len(photos))
	}

	photos, err = db.QueryPhotos(ctx, Filter{Tag: TagUntagged})
	if err != nil {
		t.Fatalf("QueryPhotos untagged failed: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != untagged {
		t.Errorf("Expected only untagged photo, got %d results", len(photos))
	}

	count, err := db.PhotoCount(ctx, Filter{Tag: "Vacation"})
	if err != nil {
		t.Fatalf("PhotoCount by tag failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1 for tag filter, got %d", count)
	}
}

func TestDeletePhotoCascades(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	id := mustInsert(t, db, "/photos/doomed.jpg")

	tag, err := db.GetOrCreateTag(ctx, "Trash")
	if err != nil {
		t.Fatalf("GetOrCreateTag failed: %v", err)
	}
	if err := db.AssignTag(ctx, id, tag.ID); err != nil {
		t.Fatalf("AssignTag failed: %v", err)
	}
	if err := db.PutThumbnail(ctx, id, "/cache/1.jpg", time.Now()); err != nil {
		t.Fatalf("PutThumbnail failed: %v", err)
	}

	deleted, thumbPath, err := db.DeletePhoto(ctx, id)
	if err != nil {
		t.Fatalf("DeletePhoto failed: %v", err)
	}
	if !deleted {
		t.Fatal("Expected photo to be deleted")
	}
	if thumbPath != "/cache/1.jpg" {
		t.Errorf("Expected cached thumbnail path back, got %q", thumbPath)
	}

	if _, err := db.GetPhoto(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected photo gone, got %v", err)
	}
	if _, err := db.GetThumbnail(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected thumbnail entry gone, got %v", err)
	}
	tags, err := db.GetPhotoTags(ctx, id)
	if err != nil {
		t.Fatalf("GetPhotoTags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("Expected no associations left, got %d", len(tags))
	}

	// The tag itself survives the photo.
	all, err := db.GetAllTags(ctx)
	if err != nil {
		t.Fatalf("GetAllTags failed: %v", err)
	}
	if len(all) != 1 || all[0].PhotoCount != 0 {
		t.Errorf("Expected surviving tag with zero photos, got %+v", all)
	}

	// Deleting again reports nothing done.
	deleted, _, err = db.DeletePhoto(ctx, id)
	if err != nil {
		t.Fatalf("Second DeletePhoto failed: %v", err)
	}
	if deleted {
		t.Error("Expected second delete to be a no-op")
	}
}
