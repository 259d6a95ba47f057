package backends

import (
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/images"
)

// haarConfidence is the fixed confidence assigned to cascade detections;
// the classifier itself reports none.
const haarConfidence = 0.85

// HaarConfig configures the classical cascade fallback backend.
type HaarConfig struct {
	// ID is the registry identifier, normally BackendHaar.
	ID string `yaml:"id"`
	// CascadePath points at the Haar cascade XML file.
	CascadePath string `yaml:"cascade_path"`
	// MinNeighbors controls detection strictness; higher rejects more.
	MinNeighbors int `yaml:"min_neighbors"`
}

// Haar wraps an OpenCV Haar cascade classifier as the zero-setup-cost
// fallback detector. Loaded lazily, once, and serialized with a mutex
// because the underlying classifier is not safe for concurrent use.
type Haar struct {
	cfg HaarConfig
	log *zap.Logger

	initOnce   sync.Once
	initErr    error
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	loaded     bool
}

// NewHaar creates the cascade fallback backend.
func NewHaar(cfg HaarConfig, log *zap.Logger) *Haar {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MinNeighbors <= 0 {
		cfg.MinNeighbors = 5
	}
	return &Haar{cfg: cfg, log: log}
}

// ID returns the configured registry identifier.
func (h *Haar) ID() string { return h.cfg.ID }

// Available reports whether the cascade file exists on disk.
func (h *Haar) Available() bool {
	info, err := os.Stat(h.cfg.CascadePath)
	return err == nil && info.Size() > 0
}

func (h *Haar) initialize() error {
	h.initOnce.Do(func() {
		if !h.Available() {
			h.initErr = errors.Errorf("cascade file not found: %s", h.cfg.CascadePath)
			return
		}
		h.classifier = gocv.NewCascadeClassifier()
		if !h.classifier.Load(h.cfg.CascadePath) {
			h.classifier.Close()
			h.initErr = errors.Errorf("failed to load cascade: %s", h.cfg.CascadePath)
			return
		}
		h.loaded = true
		h.log.Info("haar cascade backend initialized",
			zap.String("backend", h.cfg.ID),
			zap.String("cascade", h.cfg.CascadePath))
	})
	return h.initErr
}

// Detect runs the cascade over a grayscale copy of the image. The
// confidence threshold is ignored; cascade hits carry a fixed confidence.
func (h *Haar) Detect(img image.Image, _ float32) ([]faces.Candidate, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := h.initialize(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image to Mat")
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	h.mu.Lock()
	rects := h.classifier.DetectMultiScaleWithParams(
		gray, 1.1, h.cfg.MinNeighbors, 0,
		image.Pt(30, 30), image.Pt(0, 0),
	)
	h.mu.Unlock()

	cands := make([]faces.Candidate, 0, len(rects))
	for _, r := range rects {
		cands = append(cands, faces.Candidate{
			Box:        images.FromRectangle(r),
			Confidence: haarConfidence,
			BackendID:  h.cfg.ID,
		})
	}
	return cands, nil
}

// Close releases the classifier.
func (h *Haar) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded {
		h.loaded = false
		return h.classifier.Close()
	}
	return nil
}
