package database

import "time"

// Photo is one cataloged image file.
//
// Filepath is unique across the catalog: at most one entry per absolute
// path. GPS latitude and longitude are always set as a pair or not at all.
type Photo struct {
	ID           int64      `json:"id"`
	Filename     string     `json:"filename"`
	Filepath     string     `json:"filepath"`
	FileSize     int64      `json:"fileSize"`
	DateAdded    time.Time  `json:"dateAdded"`
	DateTaken    *time.Time `json:"dateTaken,omitempty"`
	CameraMake   string     `json:"cameraMake,omitempty"`
	CameraModel  string     `json:"cameraModel,omitempty"`
	LensModel    string     `json:"lensModel,omitempty"`
	FocalLength  float64    `json:"focalLength,omitempty"`
	Aperture     float64    `json:"aperture,omitempty"`
	ShutterSpeed string     `json:"shutterSpeed,omitempty"`
	ISO          int        `json:"iso,omitempty"`
	Flash        string     `json:"flash,omitempty"`
	Orientation  int        `json:"orientation,omitempty"` // EXIF convention, 1-8
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	GPSLatitude  *float64   `json:"gpsLatitude,omitempty"`
	GPSLongitude *float64   `json:"gpsLongitude,omitempty"`
	GPSAltitude  *float64   `json:"gpsAltitude,omitempty"`
	GPSLocation  string     `json:"gpsLocationName,omitempty"`

	// Metadata is the opaque tag map preserved for inspection. It is
	// stored as a JSON blob and never queried field by field.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Tag is a user-defined label with an independent lifecycle from photos.
type Tag struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color,omitempty"`
	PhotoCount int       `json:"photoCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ThumbnailEntry is a row in the thumbnail cache index. An entry is valid
// only while the source file's current modification time equals
// SourceModTime; any mismatch forces regeneration.
type ThumbnailEntry struct {
	PhotoID       int64     `json:"photoId"`
	CachePath     string    `json:"cachePath"`
	SourceModTime time.Time `json:"sourceModTime"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Filter selects photos for QueryPhotos and PhotoCount.
//
// Tag filters by tag name; the sentinel values TagAll (or empty) and
// TagUntagged select every photo and photos with no tags respectively.
// Search matches a substring of the filename, case-insensitively.
// Limit <= 0 means no limit.
type Filter struct {
	Tag    string
	Search string
	Limit  int
	Offset int
}

// Sentinel values for Filter.Tag.
const (
	TagAll      = "All"
	TagUntagged = "Untagged"
)

// Info describes the catalog database file location and size.
type Info struct {
	Path      string `json:"path"`
	Directory string `json:"directory"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"sizeBytes"`
}
