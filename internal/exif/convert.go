package exif

import (
	"strings"

	"github.com/rwcarlsen/goexif/tiff"
)

// convertValue turns a raw tag into a value json.Marshal accepts.
// Multi-count tags become slices, rationals become floats, and byte
// payloads become lossily decoded strings. Division by zero has no
// JSON representation, so infinite rationals are encoded as the
// strings "Infinity" and "-Infinity".
func convertValue(tag *tiff.Tag) interface{} {
	n := int(tag.Count)

	switch tag.Format() {
	case tiff.IntVal:
		if n == 1 {
			v, err := tag.Int(0)
			if err != nil {
				return nil
			}
			return v
		}
		vals := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			v, err := tag.Int(i)
			if err != nil {
				vals = append(vals, nil)
				continue
			}
			vals = append(vals, v)
		}
		return vals

	case tiff.FloatVal:
		if n == 1 {
			v, err := tag.Float(0)
			if err != nil {
				return nil
			}
			return v
		}
		vals := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			v, err := tag.Float(i)
			if err != nil {
				vals = append(vals, nil)
				continue
			}
			vals = append(vals, v)
		}
		return vals

	case tiff.RatVal:
		if n == 1 {
			return ratValue(tag, 0)
		}
		vals := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			vals = append(vals, ratValue(tag, i))
		}
		return vals

	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		return cleanString(s)

	case tiff.UndefVal, tiff.OtherVal:
		return cleanString(string(tag.Val))

	default:
		return cleanString(tag.String())
	}
}

func ratValue(tag *tiff.Tag, i int) interface{} {
	num, den, err := tag.Rat2(i)
	if err != nil {
		return nil
	}
	return ratToJSON(num, den)
}

func ratToJSON(num, den int64) interface{} {
	if den == 0 {
		if num > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}
	return float64(num) / float64(den)
}

// cleanString strips trailing NUL padding and replaces invalid UTF-8
// so the value survives JSON encoding.
func cleanString(s string) string {
	s = strings.TrimRight(s, "\x00")
	s = strings.TrimSpace(s)
	return strings.ToValidUTF8(s, "�")
}
