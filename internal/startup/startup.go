package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"photosphere/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const appName = "PhotoSphere"

// Config holds all application configuration.
type Config struct {
	// DataDir is the application-data root. The catalog database and the
	// thumbnail cache live underneath it.
	DataDir string

	// Derived paths
	DatabasePath string
	ThumbnailDir string

	// ThumbnailBound is the default longest-side bound for generated
	// thumbnails, in pixels.
	ThumbnailBound int

	// BatchWindow is the debounce window for batched thumbnail delivery.
	BatchWindow time.Duration

	// MaxGenerators caps the thumbnail worker pool.
	MaxGenerators int

	// VipsEnabled requests libvips initialization for extended codec
	// support. Whether it actually becomes available is probed at startup.
	VipsEnabled bool
}

// LoadConfig resolves configuration from the environment and prepares the
// application-data directories. It is the only startup step allowed to
// fail fatally: without a writable data directory nothing else can run.
func LoadConfig() (*Config, error) {
	printBanner()

	dataDir := os.Getenv("PHOTOSPHERE_DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        dataDir,
		DatabasePath:   filepath.Join(dataDir, "photo_catalog.db"),
		ThumbnailDir:   filepath.Join(dataDir, "thumbnails"),
		ThumbnailBound: getEnvInt("PHOTOSPHERE_THUMBNAIL_SIZE", 150),
		BatchWindow:    getEnvDuration("PHOTOSPHERE_BATCH_WINDOW", 50*time.Millisecond),
		MaxGenerators:  getEnvInt("PHOTOSPHERE_MAX_GENERATORS", 8),
		VipsEnabled:    getEnvBool("PHOTOSPHERE_VIPS", true),
	}

	for _, dir := range []string{cfg.DataDir, cfg.ThumbnailDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := testWriteAccess(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data directory not writable: %w", err)
	}

	logging.Info("  DATA_DIR:        %s", cfg.DataDir)
	logging.Info("  DATABASE:        %s", cfg.DatabasePath)
	logging.Info("  THUMBNAIL_DIR:   %s", cfg.ThumbnailDir)
	logging.Info("  THUMBNAIL_SIZE:  %d", cfg.ThumbnailBound)
	logging.Info("  BATCH_WINDOW:    %s", cfg.BatchWindow)
	logging.Info("  MAX_GENERATORS:  %d", cfg.MaxGenerators)
	logging.Info("  LOG_LEVEL:       %s", logging.GetLevel())

	return cfg, nil
}

// defaultDataDir returns the OS-specific application-data directory:
// %APPDATA%\PhotoSphere on Windows, ~/Library/Application Support/PhotoSphere
// on macOS, $XDG_DATA_HOME/PhotoSphere (or ~/.local/share/PhotoSphere)
// elsewhere.
func defaultDataDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(home, "AppData", "Roaming", appName)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(home, ".local", "share", appName)
	}
}

func testWriteAccess(dir string) error {
	probe := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return err
	}
	_ = os.Remove(probe)
	return nil
}

func printBanner() {
	logging.Info("------------------------------------------------------------")
	logging.Info("PhotoSphere catalog engine %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	logging.Info("------------------------------------------------------------")
}

// LogDatabaseInit logs database initialization timing.
func LogDatabaseInit(duration time.Duration) {
	logging.Info("Database ready in %v", duration)
}

// LogShutdownInitiated logs the start of a graceful shutdown.
func LogShutdownInitiated(signal string) {
	logging.Info("Received %s, shutting down...", signal)
}

// LogShutdownComplete logs the end of a graceful shutdown.
func LogShutdownComplete() {
	logging.Info("Shutdown complete")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
		logging.Warn("  Invalid %s=%q, using default %d", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logging.Warn("  Invalid %s=%q, using default %s", key, v, defaultValue)
	}
	return defaultValue
}
