package media

import (
	"image"

	"github.com/disintegration/imaging"
)

// applyOrientation normalizes an image to EXIF orientation 1. The
// orientation values describe how the stored pixels must be transformed
// for upright display. imaging.Rotate90 rotates counter-clockwise, so
// the clockwise EXIF rotations map to their complements.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
