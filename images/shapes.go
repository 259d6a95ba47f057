// Package images - shared image types and pixel-level helpers for the
// face detection pipeline.
package images

import "image"

// Rect is a lightweight bounding box in pixel coordinates.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the vertical extent of the box.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns the box area in pixels. Degenerate boxes report 0.
func (r Rect) Area() int {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return r.Width() * r.Height()
}

// AspectRatio returns width/height, or 0 for a degenerate box.
func (r Rect) AspectRatio() float32 {
	if r.Height() <= 0 {
		return 0
	}
	return float32(r.Width()) / float32(r.Height())
}

// Center returns the center point of the box.
func (r Rect) Center() image.Point {
	return image.Point{X: (r.X1 + r.X2) / 2, Y: (r.Y1 + r.Y2) / 2}
}

// ToRectangle converts to the standard library rectangle type.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2).Canon()
}

// FromRectangle converts a standard library rectangle to a Rect.
func FromRectangle(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// CalculateIoU computes the Intersection over Union between two boxes.
//
// IoU = Area of Intersection / Area of Union, a value in [0, 1] where 1
// means identical boxes and 0 means no overlap. The pipeline uses it for
// overlap suppression of duplicate detections.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
func CalculateIoU(r, o Rect) float32 {
	// The intersection starts at the maximum of the starting coordinates
	// and ends at the minimum of the ending coordinates.
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float32(interArea) / float32(unionArea)
}
