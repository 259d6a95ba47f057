// Package backends - interchangeable face detection backends behind a
// uniform detect contract.
//
// Backends are heavy, lazily-initialized handles (model weights, cascade
// files) shared across detection calls. Each backend initializes at most
// once per process and is treated as read-only thereafter. A backend with
// no usable model degrades to returning errors from Detect; the registry
// translates those into zero candidates so that a missing or broken
// backend is never fatal to a detection call.
package backends

import (
	"image"

	"github.com/visionkit/adaptiveface/faces"
)

// Well-known backend identifiers used by the tier policy.
const (
	// BackendFast is the lightweight low-latency model.
	BackendFast = "yolo_face_fast"
	// BackendAccurate is the slower higher-recall model.
	BackendAccurate = "yolo_face_accurate"
	// BackendHaar is the classical cascade fallback with zero setup cost.
	BackendHaar = "haar_cascade"
)

// Backend is the uniform contract every detector implementation exposes.
type Backend interface {
	// ID returns the stable identifier the tier policy selects by.
	ID() string

	// Available reports whether the backend has a usable model without
	// forcing initialization.
	Available() bool

	// Detect runs inference and returns raw face candidates. Safe to call
	// repeatedly. confThreshold <= 0 selects the backend default.
	Detect(img image.Image, confThreshold float32) ([]faces.Candidate, error)

	// Close releases model resources. Detect must not be called after.
	Close() error
}
