package exif

import (
	goexif "github.com/rwcarlsen/goexif/exif"
)

// fillGPS resolves the GPS sub-record into decimal coordinates.
// Latitude and longitude are set as a pair or not at all; a lone
// coordinate is meaningless and discarded.
func (m *Metadata) fillGPS(x *goexif.Exif) {
	lat, latOK := dmsCoordinate(x, goexif.GPSLatitude, goexif.GPSLatitudeRef)
	lon, lonOK := dmsCoordinate(x, goexif.GPSLongitude, goexif.GPSLongitudeRef)
	if latOK && lonOK {
		m.GPSLatitude = &lat
		m.GPSLongitude = &lon
	}

	if alt, ok := altitude(x); ok {
		m.GPSAltitude = &alt
	}

	if loc, ok := tagString(x, goexif.GPSAreaInformation); ok {
		m.GPSLocation = loc
	}
}

// dmsCoordinate converts a degrees/minutes/seconds triple plus its
// hemisphere reference into a signed decimal coordinate.
func dmsCoordinate(x *goexif.Exif, field, refField goexif.FieldName) (float64, bool) {
	tag, err := x.Get(field)
	if err != nil || tag.Count < 3 {
		return 0, false
	}

	var parts [3]float64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}
		parts[i] = float64(num) / float64(den)
	}

	ref, ok := tagString(x, refField)
	if !ok {
		return 0, false
	}

	return dmsToDecimal(parts[0], parts[1], parts[2], ref), true
}

func dmsToDecimal(deg, min, sec float64, ref string) float64 {
	decimal := deg + min/60.0 + sec/3600.0
	if ref == "S" || ref == "W" {
		decimal = -decimal
	}
	return decimal
}

// altitude reads GPSAltitude, negated when the reference byte marks it
// as below sea level.
func altitude(x *goexif.Exif) (float64, bool) {
	alt, ok := tagRatFloat(x, goexif.GPSAltitude)
	if !ok {
		return 0, false
	}
	if ref, err := x.Get(goexif.GPSAltitudeRef); err == nil {
		if v, err := ref.Int(0); err == nil && v == 1 {
			alt = -alt
		}
	}
	return alt, true
}
