// Package quality - image quality assessment for adaptive tier selection.
//
// Scores are scalars in [0, 100] derived purely from pixel content: a
// brightness distribution measure, an edge/sharpness measure based on the
// Laplacian, and a contrast measure. The same machinery scores whole
// photographs for tier selection and cropped face regions for filtering.
package quality

import (
	"image"
	"math"

	"github.com/chewxy/math32"

	"github.com/visionkit/adaptiveface/images"
)

// Assess scores an input image for detectability quality.
//
// The score blends four metrics, weighted the way the detection tiers
// expect them:
//
//	sharpness (Laplacian variance)  0.30
//	noise (inverted Laplacian std)  0.25
//	contrast (luma std)             0.25
//	brightness (distance from mid)  0.20
//
// Deterministic for a given image, no side effects. A nil or empty image
// scores 0.
func Assess(img image.Image) float64 {
	plane, w, h := images.Luma(img)
	if len(plane) == 0 || w < 3 || h < 3 {
		return 0
	}

	mean, std := lumaStats(plane)
	lapVar, lapStd, _ := laplacianStats(plane, w, h)

	blurScore := clamp(lapVar / 10)
	noiseScore := clamp(100 - lapStd/2)
	contrastScore := clamp(std / 2)
	brightnessScore := clamp(100 - abs(mean-125)/2)

	score := blurScore*0.30 + noiseScore*0.25 + contrastScore*0.25 + brightnessScore*0.20
	return clamp(score)
}

// Region scores a cropped face region for face-likeness.
//
// Face regions have more contrast and edge structure than flat background
// patches, and sit away from the brightness extremes:
//
//	contrast (luma std x2)       0.40
//	edge density (x1000)         0.40
//	brightness (100-|mean-127|)  0.20
//
// An empty region scores 0.
func Region(img image.Image) float32 {
	plane, w, h := images.Luma(img)
	if len(plane) == 0 {
		return 0
	}

	mean, std := lumaStats(plane)

	var edgeDensity float64
	if w >= 3 && h >= 3 {
		_, _, edgeDensity = laplacianStats(plane, w, h)
	}

	contrastScore := math32.Min(100, float32(std)*2)
	edgeScore := math32.Min(100, float32(edgeDensity)*1000)
	brightnessScore := math32.Max(0, 100-math32.Abs(float32(mean)-127))

	score := contrastScore*0.4 + edgeScore*0.4 + brightnessScore*0.2
	return math32.Max(0, math32.Min(100, score))
}

// lumaStats returns the mean and standard deviation of a luminance plane.
func lumaStats(plane []uint8) (mean, std float64) {
	n := float64(len(plane))
	var sum float64
	for _, v := range plane {
		sum += float64(v)
	}
	mean = sum / n

	var sumSq float64
	for _, v := range plane {
		d := float64(v) - mean
		sumSq += d * d
	}
	return mean, math.Sqrt(sumSq / n)
}

// edgeThreshold is the absolute Laplacian response above which a pixel
// counts toward edge density.
const edgeThreshold = 40.0

// laplacianStats convolves the 4-neighbor Laplacian kernel over the plane
// and returns the response variance, standard deviation, and the fraction
// of pixels whose absolute response exceeds the edge threshold. Border
// pixels are excluded.
func laplacianStats(plane []uint8, w, h int) (variance, std, edgeDensity float64) {
	n := (w - 2) * (h - 2)
	if n <= 0 {
		return 0, 0, 0
	}

	responses := make([]float64, 0, n)
	var sum float64
	edges := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := float64(plane[y*w+x])
			up := float64(plane[(y-1)*w+x])
			down := float64(plane[(y+1)*w+x])
			left := float64(plane[y*w+x-1])
			right := float64(plane[y*w+x+1])

			r := up + down + left + right - 4*c
			responses = append(responses, r)
			sum += r
			if r > edgeThreshold || r < -edgeThreshold {
				edges++
			}
		}
	}

	mean := sum / float64(n)
	var sumSq float64
	for _, r := range responses {
		d := r - mean
		sumSq += d * d
	}
	variance = sumSq / float64(n)
	return variance, math.Sqrt(variance), float64(edges) / float64(n)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
