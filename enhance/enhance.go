// Package enhance - preprocessing transforms for degraded-quality images.
//
// Used only by the degraded-quality detection tiers: the enhancer picks a
// transform chain from the image's quality score and returns a new buffer,
// never mutating the input.
package enhance

import (
	"image"

	"github.com/disintegration/imaging"
)

// Quality bands controlling how much correction is applied before
// re-running detection.
const (
	bandVeryPoor   = 30
	bandPoor       = 50
	bandAcceptable = 70
)

// Enhance applies contrast/denoise/sharpen transforms to an image,
// parameterized by its quality score.
//
//	score < 30:  contrast + denoise + deblur + sharpen
//	score < 50:  contrast + denoise + sharpen
//	score < 70:  contrast only
//	otherwise:   unchanged copy
//
// Arguments:
//   - img: The source image. Never mutated.
//   - score: A quality score in [0, 100], typically from quality.Assess.
//
// Returns:
//   - A new image buffer with the same dimensions. Nil input yields nil.
func Enhance(img image.Image, score float64) image.Image {
	if img == nil {
		return nil
	}

	switch {
	case score < bandVeryPoor:
		out := contrast(img)
		out = denoise(out)
		out = imaging.Sharpen(out, 2.0) // deblur pass
		return imaging.Sharpen(out, 0.8)
	case score < bandPoor:
		out := contrast(img)
		out = denoise(out)
		return imaging.Sharpen(out, 0.8)
	case score < bandAcceptable:
		return contrast(img)
	default:
		return imaging.Clone(img)
	}
}

// contrast stretches local contrast moderately. Heavier equalization tends
// to amplify sensor noise, which the denoise pass would then have to undo.
func contrast(img image.Image) *image.NRGBA {
	return imaging.AdjustContrast(img, 15)
}

// denoise applies a light Gaussian blur as a fast noise suppressor.
func denoise(img image.Image) *image.NRGBA {
	return imaging.Blur(img, 0.6)
}
