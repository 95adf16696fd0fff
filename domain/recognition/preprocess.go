package recognition

import (
	"image"

	"github.com/disintegration/imaging"
)

// fitWithin downsizes img so its longest side is at most maxDim. Smaller
// images are returned untouched.
func fitWithin(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Linear)
}

// rotate90 turns a vertically photographed linear code horizontal; the
// one-dimensional readers only scan rows.
func rotate90(img image.Image) image.Image {
	return imaging.Rotate90(img)
}

// scanWindow crops the centered fraction of img that a live preview frames
// as the aiming box. Fractions outside (0, 1) leave img untouched.
func scanWindow(img image.Image, fraction float64) image.Image {
	if fraction <= 0 || fraction >= 1 {
		return img
	}
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*fraction))
	h := max(1, int(float64(b.Dy())*fraction))
	return imaging.CropCenter(img, w, h)
}
