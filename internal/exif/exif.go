package exif

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"strconv"
	"time"

	// Decoders for the supported still-image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"photosphere/internal/logging"
	"photosphere/internal/metrics"
)

// exifHeader marks an embedded EXIF block in formats goexif cannot
// parse directly (HEIC containers, some TIFF-derived raws).
var exifHeader = []byte("Exif\x00\x00")

const exifTimeLayout = "2006:01:02 15:04:05"

// Metadata holds everything extracted from a single photo file. Tags
// carries the complete converted tag set; the named fields are the
// subset the catalog indexes directly.
type Metadata struct {
	DateTaken    *time.Time
	CameraMake   string
	CameraModel  string
	LensModel    string
	FocalLength  float64
	Aperture     float64
	ShutterSpeed string
	ISO          int
	Flash        string
	Orientation  int
	Width        int
	Height       int
	GPSLatitude  *float64
	GPSLongitude *float64
	GPSAltitude  *float64
	GPSLocation  string
	Tags         map[string]interface{}
}

// Extract reads dimensions and EXIF metadata from the image at path.
// A file without EXIF data is not an error; only an unreadable or
// undecodable image fails.
func Extract(path string) (*Metadata, error) {
	defer func(start time.Time) {
		metrics.ExtractDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, _, cfgErr := image.DecodeConfig(bytes.NewReader(data))

	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		x = decodeEmbedded(data)
	}

	// A file we can neither size nor find tags in is not an image we
	// understand. Either source alone is enough to catalog.
	if cfgErr != nil && x == nil {
		return nil, fmt.Errorf("unsupported image format in %s: %w", path, cfgErr)
	}

	m := &Metadata{
		Orientation: 1,
		Tags:        map[string]interface{}{},
	}
	if cfgErr == nil {
		m.Width = cfg.Width
		m.Height = cfg.Height
	}

	if x == nil {
		// No EXIF block at all. Dimensions alone are still a valid result.
		return m, nil
	}

	collector := &tagCollector{tags: m.Tags}
	if err := x.Walk(collector); err != nil {
		logging.Warn("partial EXIF walk for %s: %v", path, err)
	}

	m.fillKnownFields(x)
	m.fillGPS(x)

	// Containers the decoders cannot size often still declare pixel
	// dimensions in their EXIF block.
	if cfgErr != nil {
		if w, ok := tagInt(x, goexif.PixelXDimension); ok {
			m.Width = w
		}
		if h, ok := tagInt(x, goexif.PixelYDimension); ok {
			m.Height = h
		}
	}

	return m, nil
}

// decodeEmbedded scans for an EXIF block inside a container goexif does
// not understand and parses the TIFF stream that follows the marker.
// Returns nil when nothing usable is found.
func decodeEmbedded(data []byte) *goexif.Exif {
	idx := bytes.Index(data, exifHeader)
	if idx < 0 {
		return nil
	}
	x, err := goexif.Decode(bytes.NewReader(data[idx+len(exifHeader):]))
	if err != nil {
		return nil
	}
	return x
}

func (m *Metadata) fillKnownFields(x *goexif.Exif) {
	if s, ok := tagString(x, goexif.DateTimeOriginal); ok {
		m.DateTaken = parseExifTime(s)
	}
	if m.DateTaken == nil {
		if s, ok := tagString(x, goexif.DateTime); ok {
			m.DateTaken = parseExifTime(s)
		}
	}

	m.CameraMake, _ = tagString(x, goexif.Make)
	m.CameraModel, _ = tagString(x, goexif.Model)
	m.LensModel, _ = tagString(x, goexif.LensModel)

	if f, ok := tagRatFloat(x, goexif.FocalLength); ok {
		m.FocalLength = f
	}
	if f, ok := tagRatFloat(x, goexif.FNumber); ok {
		m.Aperture = f
	}
	if tag, err := x.Get(goexif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil {
			m.ShutterSpeed = formatExposure(num, den)
		}
	}
	if n, ok := tagInt(x, goexif.ISOSpeedRatings); ok {
		m.ISO = n
	}
	if n, ok := tagInt(x, goexif.Flash); ok {
		m.Flash = strconv.Itoa(n)
	}
	if n, ok := tagInt(x, goexif.Orientation); ok && n >= 1 && n <= 8 {
		m.Orientation = n
	}
}

// formatExposure renders an exposure rational the way cameras report
// it: whole seconds plain, fractions as num/den.
func formatExposure(num, den int64) string {
	if den == 0 {
		return ""
	}
	if num%den == 0 {
		return fmt.Sprintf("%d", num/den)
	}
	return fmt.Sprintf("%d/%d", num, den)
}

func parseExifTime(s string) *time.Time {
	t, err := time.ParseInLocation(exifTimeLayout, s, time.Local)
	if err != nil {
		return nil
	}
	return &t
}

func tagString(x *goexif.Exif, name goexif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	return cleanString(s), true
}

func tagInt(x *goexif.Exif, name goexif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	n, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return n, true
}

func tagRatFloat(x *goexif.Exif, name goexif.FieldName) (float64, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

type tagCollector struct {
	tags map[string]interface{}
}

func (c *tagCollector) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	c.tags[string(name)] = convertValue(tag)
	return nil
}
