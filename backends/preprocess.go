package backends

import (
	"image"

	"github.com/nfnt/resize"
)

// chwTensor resizes an image to size x size and lays its RGB channels out
// as a planar NCHW float32 tensor normalized to [0, 1], the input format
// the YOLO face models expect.
//
// Arguments:
//   - img: The source image.
//   - size: The square model input edge length in pixels.
//
// Returns:
//   - A slice of 3*size*size float32 values in CHW order.
func chwTensor(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	data := make([]float32, 3*size*size)
	bounds := resized.Bounds()
	plane := size * size
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[i] = float32(r>>8) / 255.0
			data[plane+i] = float32(g>>8) / 255.0
			data[2*plane+i] = float32(b>>8) / 255.0
			i++
		}
	}
	return data
}
