// Package faces - candidate types shared across the detection pipeline.
package faces

import (
	"fmt"

	"github.com/visionkit/adaptiveface/images"
)

// Candidate is a raw face detection produced by a backend. Immutable once
// created; list order carries no meaning until the filter assigns one.
type Candidate struct {
	Box        images.Rect
	Confidence float32
	BackendID  string
}

// String formats the candidate for logs and debugging output.
func (c Candidate) String() string {
	return fmt.Sprintf("face %s (confidence %.3f): (%d, %d), (%d, %d)",
		c.BackendID, c.Confidence, c.Box.X1, c.Box.Y1, c.Box.X2, c.Box.Y2)
}

// Filtered is a Candidate that survived the smart filter, extended with a
// region quality score in [0, 100] computed from the cropped sub-image.
type Filtered struct {
	Candidate

	// RegionQuality is derived solely from the pixels inside Box.
	RegionQuality float32

	// EdgePenalized records that the edge-bias confidence reduction has
	// already been applied, so re-filtering does not compound it.
	EdgePenalized bool
}

// Composite is the ranking score used for suppression decisions:
// confidence multiplied by region quality.
func (f Filtered) Composite() float32 {
	return f.Confidence * f.RegionQuality
}

// Wrap lifts raw candidates into the filtered representation with a zero
// region quality, ready for the smart filter to score.
func Wrap(cands []Candidate) []Filtered {
	out := make([]Filtered, 0, len(cands))
	for _, c := range cands {
		out = append(out, Filtered{Candidate: c})
	}
	return out
}
