package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath = filepath.Join(tmpDir, "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db, dbPath
}

func testPhoto(path string) *Photo {
	taken := time.Date(2023, 6, 15, 12, 30, 0, 0, time.UTC)
	return &Photo{
		Filename:    filepath.Base(path),
		Filepath:    path,
		FileSize:    2048,
		DateTaken:   &taken,
		CameraMake:  "Canon",
		CameraModel: "EOS R5",
		Width:       6000,
		Height:      4000,
		Orientation: 1,
		Metadata:    map[string]interface{}{"ExposureMode": "Auto"},
	}
}

func mustInsert(t *testing.T, db *Database, path string) int64 {
	t.Helper()
	id, err := db.InsertPhoto(context.Background(), testPhoto(path))
	if err != nil {
		t.Fatalf("InsertPhoto(%s) failed: %v", path, err)
	}
	return id
}

func TestNewCreatesDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	info := db.Info()
	if info.Path != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, info.Path)
	}
	if !info.Exists {
		t.Error("Expected database file to exist")
	}

	count, err := db.PhotoCount(context.Background(), Filter{Tag: TagAll})
	if err != nil {
		t.Fatalf("PhotoCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty catalog, got %d photos", count)
	}
}

func TestMigrationAddsGPSColumns(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "legacy.db")

	// Build a catalog that predates the GPS columns.
	legacy, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open legacy database: %v", err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE photos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			filepath TEXT NOT NULL UNIQUE,
			file_size INTEGER NOT NULL DEFAULT 0,
			date_added INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			date_taken INTEGER,
			camera_make TEXT,
			camera_model TEXT,
			lens_model TEXT,
			focal_length REAL,
			aperture REAL,
			shutter_speed TEXT,
			iso INTEGER,
			flash INTEGER,
			orientation INTEGER,
			width INTEGER,
			height INTEGER,
			metadata_json TEXT
		);
		INSERT INTO photos (filename, filepath) VALUES ('old.jpg', '/legacy/old.jpg');
	`)
	if err != nil {
		t.Fatalf("Failed to seed legacy schema: %v", err)
	}
	if err := legacy.Close(); err != nil {
		t.Fatalf("Failed to close legacy database: %v", err)
	}

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New failed on legacy database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Existing rows survive with null GPS fields.
	old, err := db.GetPhotoByPath(ctx, "/legacy/old.jpg")
	if err != nil {
		t.Fatalf("GetPhotoByPath failed after migration: %v", err)
	}
	if old.GPSLatitude != nil || old.GPSLongitude != nil {
		t.Error("Expected nil GPS coordinates on migrated row")
	}

	// New rows can use the added columns.
	lat, lon := 37.7749, -122.4194
	p := testPhoto("/legacy/new.jpg")
	p.GPSLatitude = &lat
	p.GPSLongitude = &lon
	p.GPSLocation = "San Francisco"

	id, err := db.InsertPhoto(ctx, p)
	if err != nil {
		t.Fatalf("InsertPhoto failed after migration: %v", err)
	}

	got, err := db.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}
	if got.GPSLatitude == nil || *got.GPSLatitude != lat {
		t.Errorf("Expected latitude %v, got %v", lat, got.GPSLatitude)
	}
	if got.GPSLocation != "San Francisco" {
		t.Errorf("Expected location 'San Francisco', got %q", got.GPSLocation)
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	_, dbPath := setupTestDB(t)

	// Reopening an already-migrated catalog must not fail.
	db2, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if err := db2.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
