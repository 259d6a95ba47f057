package images

import "image"

// Luma converts an image to a single-channel luminance plane using the
// ITU-R BT.709 luma coefficients. Returns the plane in row-major order
// along with its width and height. A nil or empty image yields a nil plane.
func Luma(img image.Image) ([]uint8, int, int) {
	if img == nil {
		return nil, 0, 0
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}

	plane := make([]uint8, w*h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// BT.709: Y = 0.2126 R + 0.7152 G + 0.0722 B
			lum := (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 257.0
			if lum > 255 {
				lum = 255
			}
			plane[i] = uint8(lum)
			i++
		}
	}
	return plane, w, h
}

// Crop extracts the sub-image covered by the box, clamped to the image
// bounds. Returns nil when the clamped region is empty.
func Crop(img image.Image, r Rect) image.Image {
	if img == nil {
		return nil
	}
	region := r.ToRectangle().Intersect(img.Bounds())
	if region.Empty() {
		return nil
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(region)
	}

	// Fallback for image types without SubImage support.
	out := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	for y := 0; y < region.Dy(); y++ {
		for x := 0; x < region.Dx(); x++ {
			out.Set(x, y, img.At(region.Min.X+x, region.Min.Y+y))
		}
	}
	return out
}
