package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photosphere/internal/logging"
	"photosphere/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrDuplicatePath is returned by InsertPhoto when the filepath is
// already cataloged. No partial row is created.
var ErrDuplicatePath = errors.New("filepath already cataloged")

// Database is the durable catalog store: photos, tags, photo-tag
// associations, and the thumbnail cache index, backed by a single local
// SQLite file.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if necessary) the catalog database at dbPath and
// initializes the schema. The parent directory must already exist; use
// startup.LoadConfig to prepare it. Failure here is fatal to the caller:
// no catalog operation can proceed without the store.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Catalog database: %s", dbPath)

	// WAL keeps readers unblocked during the short write transactions the
	// importer and thumbnail index produce. foreign_keys enforces the
	// cascade constraints the schema relies on.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog database initialized at %s", dbPath)
	return d, nil
}

// initialize creates all tables and indexes if absent and applies
// additive migrations. Safe to call on every startup.
func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS photos (
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
		flash TEXT,
		orientation INTEGER,
		width INTEGER,
		height INTEGER,
		gps_latitude REAL,
		gps_longitude REAL,
		gps_altitude REAL,
		gps_location_name TEXT,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_photos_date_added ON photos(date_added DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_photos_filename ON photos(filename COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		color TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS photo_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		photo_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(photo_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_photo_tags_photo ON photo_tags(photo_id);
	CREATE INDEX IF NOT EXISTS idx_photo_tags_tag ON photo_tags(tag_id);

	CREATE TABLE IF NOT EXISTS thumbnails (
		photo_id INTEGER PRIMARY KEY,
		cache_path TEXT NOT NULL,
		source_mod_time INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies additive column migrations, detected by
// inspecting the existing schema. Earlier catalog versions predate the
// GPS columns.
func (d *Database) runMigrations(ctx context.Context) error {
	gpsColumns := []struct {
		name string
		typ  string
	}{
		{"gps_latitude", "REAL"},
		{"gps_longitude", "REAL"},
		{"gps_altitude", "REAL"},
		{"gps_location_name", "TEXT"},
	}

	for _, col := range gpsColumns {
		var exists bool
		err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info('photos')
			WHERE name = ?
		`, col.name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", col.name, err)
		}
		if exists {
			continue
		}

		logging.Info("Migrating catalog: adding %s column to photos table", col.name)
		_, err = d.db.ExecContext(ctx,
			fmt.Sprintf("ALTER TABLE photos ADD COLUMN %s %s", col.name, col.typ))
		if err != nil {
			return fmt.Errorf("failed to add %s column: %w", col.name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Info reports the catalog file location and current size.
func (d *Database) Info() Info {
	info := Info{
		Path:      d.dbPath,
		Directory: filepath.Dir(d.dbPath),
	}
	if st, err := os.Stat(d.dbPath); err == nil {
		info.Exists = true
		info.SizeBytes = st.Size()
	}
	return info
}

// UpdateDBMetrics refreshes connection-pool gauges.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records query metrics for an operation started at start.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// observeQuery returns a completion func for deferred metric recording.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}
