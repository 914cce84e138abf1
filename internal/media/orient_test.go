package media

import (
	"image"
	"image/color"
	"testing"
)

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	return img
}

func samePixels(t *testing.T, a, b image.Image) bool {
	t.Helper()
	if a.Bounds() != b.Bounds() {
		return false
	}
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ar, ag, ab, aa := a.At(x, y).RGBA()
			br, bg, bb, ba := b.At(x, y).RGBA()
			if ar != br || ag != bg || ab != bb || aa != ba {
				return false
			}
		}
	}
	return true
}

func TestApplyOrientationDimensions(t *testing.T) {
	src := gradientImage(200, 100)

	tests := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{1, 200, 100},
		{2, 200, 100},
		{3, 200, 100},
		{4, 200, 100},
		{5, 100, 200},
		{6, 100, 200},
		{7, 100, 200},
		{8, 100, 200},
		{0, 200, 100},
		{9, 200, 100},
	}

	for _, tt := range tests {
		got := applyOrientation(src, tt.orientation)
		if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
			t.Errorf("orientation %d: got %dx%d, want %dx%d",
				tt.orientation, got.Bounds().Dx(), got.Bounds().Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestApplyOrientationRotate180Twice(t *testing.T) {
	src := gradientImage(64, 32)

	twice := applyOrientation(applyOrientation(src, 3), 3)
	if !samePixels(t, src, twice) {
		t.Error("Expected two 180° rotations to restore the original")
	}
}

func TestApplyOrientationIdentityReturnsInput(t *testing.T) {
	src := gradientImage(10, 10)
	if got := applyOrientation(src, 1); got != image.Image(src) {
		t.Error("Expected orientation 1 to return the input unchanged")
	}
}
