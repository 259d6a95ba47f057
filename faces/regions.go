package faces

import (
	"image"

	"github.com/visionkit/adaptiveface/images"
)

// Regions crops the bounding box of each candidate out of the original
// image, in the same order as the input. Downstream encoders consume
// these crops rather than the full frame.
func Regions(img image.Image, cands []Filtered) []image.Image {
	if img == nil {
		return nil
	}
	out := make([]image.Image, 0, len(cands))
	for _, c := range cands {
		out = append(out, images.Crop(img, c.Box))
	}
	return out
}
