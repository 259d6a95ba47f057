// Package filter - false-positive suppression for raw face detections.
//
// The smart filter post-processes raw backend output in a fixed order:
// geometric plausibility, edge-bias de-weighting, region-quality scoring,
// greedy overlap suppression, and an optional cardinality cap for
// single-subject contexts. Applying the filter to its own output yields
// the same candidate set and order.
package filter

import (
	"image"
	"sort"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/images"
	"github.com/visionkit/adaptiveface/quality"
)

// Config holds the filter thresholds. Zero values are replaced by the
// defaults from DefaultConfig.
type Config struct {
	// MinFaceSize is the minimum box side length in pixels.
	MinFaceSize int `yaml:"min_face_size"`
	// MaxAreaFrac rejects boxes covering more than this fraction of the frame.
	MaxAreaFrac float32 `yaml:"max_area_frac"`
	// MinAspect/MaxAspect bound the accepted width/height ratio.
	MinAspect float32 `yaml:"min_aspect"`
	MaxAspect float32 `yaml:"max_aspect"`
	// EdgeMarginFrac is the border band, as a fraction of the smaller
	// frame dimension, within which detections are de-weighted.
	EdgeMarginFrac float32 `yaml:"edge_margin_frac"`
	// EdgePenalty multiplies the confidence of border detections.
	EdgePenalty float32 `yaml:"edge_penalty"`
	// IoUThreshold is the overlap above which two boxes are duplicates.
	IoUThreshold float32 `yaml:"iou_threshold"`
	// MaxFaces caps the retained candidates in single-subject contexts.
	MaxFaces int `yaml:"max_faces"`
}

// DefaultConfig returns the filter thresholds tuned for face detection.
func DefaultConfig() Config {
	return Config{
		MinFaceSize:    25,
		MaxAreaFrac:    0.6,
		MinAspect:      0.3,
		MaxAspect:      3.0,
		EdgeMarginFrac: 0.05,
		EdgePenalty:    0.3,
		IoUThreshold:   0.3,
		MaxFaces:       3,
	}
}

// Debug records how many candidates each filtering step removed. For
// observability only; nothing downstream branches on it.
type Debug struct {
	Input           int `json:"input"`
	RemovedGeometry int `json:"removed_geometry"`
	EdgePenalized   int `json:"edge_penalized"`
	RemovedOverlap  int `json:"removed_overlap"`
	RemovedCap      int `json:"removed_cap"`
	Output          int `json:"output"`
}

// Filter applies the false-positive suppression pipeline.
type Filter struct {
	cfg Config
	log *zap.Logger
}

// New creates a filter with the given thresholds. Zero-valued fields fall
// back to DefaultConfig.
func New(cfg Config, log *zap.Logger) *Filter {
	def := DefaultConfig()
	if cfg.MinFaceSize <= 0 {
		cfg.MinFaceSize = def.MinFaceSize
	}
	if cfg.MaxAreaFrac <= 0 {
		cfg.MaxAreaFrac = def.MaxAreaFrac
	}
	if cfg.MinAspect <= 0 {
		cfg.MinAspect = def.MinAspect
	}
	if cfg.MaxAspect <= 0 {
		cfg.MaxAspect = def.MaxAspect
	}
	if cfg.EdgeMarginFrac <= 0 {
		cfg.EdgeMarginFrac = def.EdgeMarginFrac
	}
	if cfg.EdgePenalty <= 0 {
		cfg.EdgePenalty = def.EdgePenalty
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = def.IoUThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Filter{cfg: cfg, log: log}
}

// Apply runs the filtering steps in order and returns the survivors in
// descending composite-score order along with per-step removal counts.
//
// Arguments:
//   - cands: Candidates to filter; wrap raw backend output with faces.Wrap.
//   - img: The original image the candidates were detected in.
//   - maxFaces: Cardinality cap; <= 0 disables it. Only single-subject
//     contexts pass a positive cap.
func (f *Filter) Apply(cands []faces.Filtered, img image.Image, maxFaces int) ([]faces.Filtered, Debug) {
	debug := Debug{Input: len(cands)}
	if len(cands) == 0 || img == nil {
		return nil, debug
	}

	bounds := img.Bounds()
	frameW, frameH := bounds.Dx(), bounds.Dy()

	// Step 1: geometric plausibility.
	kept := make([]faces.Filtered, 0, len(cands))
	for _, c := range cands {
		if !f.plausible(c.Box, frameW, frameH) {
			debug.RemovedGeometry++
			continue
		}
		kept = append(kept, c)
	}

	// Step 2: edge-bias de-weighting. Border detections are
	// disproportionately false positives from partial occlusion. The
	// EdgePenalized flag keeps re-filtering from compounding the penalty.
	margin := int(math32.Min(20, f.cfg.EdgeMarginFrac*float32(min(frameW, frameH))))
	for i := range kept {
		if kept[i].EdgePenalized {
			debug.EdgePenalized++
			continue
		}
		b := kept[i].Box
		if b.X1 < margin || b.Y1 < margin || b.X2 > frameW-margin || b.Y2 > frameH-margin {
			kept[i].Confidence *= f.cfg.EdgePenalty
			kept[i].EdgePenalized = true
			debug.EdgePenalized++
		}
	}

	// Step 3: region-quality scoring on the cropped sub-image.
	for i := range kept {
		kept[i].RegionQuality = quality.Region(images.Crop(img, kept[i].Box))
	}

	// Step 4: greedy pairwise overlap suppression by composite score.
	// A stable sort keeps equal composites in input order, so ties break
	// toward the earlier-indexed candidate.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Composite() > kept[j].Composite()
	})
	suppressed := make([]faces.Filtered, 0, len(kept))
	for _, c := range kept {
		overlaps := false
		for _, k := range suppressed {
			if images.CalculateIoU(c.Box, k.Box) > f.cfg.IoUThreshold {
				overlaps = true
				break
			}
		}
		if overlaps {
			debug.RemovedOverlap++
			continue
		}
		suppressed = append(suppressed, c)
	}

	// Step 5: cardinality cap for single-subject contexts.
	if maxFaces > 0 && len(suppressed) > maxFaces {
		debug.RemovedCap = len(suppressed) - maxFaces
		suppressed = suppressed[:maxFaces]
	}

	debug.Output = len(suppressed)
	f.log.Debug("smart filter applied",
		zap.Int("input", debug.Input),
		zap.Int("removed_geometry", debug.RemovedGeometry),
		zap.Int("edge_penalized", debug.EdgePenalized),
		zap.Int("removed_overlap", debug.RemovedOverlap),
		zap.Int("removed_cap", debug.RemovedCap),
		zap.Int("output", debug.Output))
	return suppressed, debug
}

// plausible rejects boxes no real face produces: degenerate or tiny
// boxes, near-frame-filling boxes, and extreme aspect ratios.
func (f *Filter) plausible(b images.Rect, frameW, frameH int) bool {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return false
	}
	if b.Width() < f.cfg.MinFaceSize || b.Height() < f.cfg.MinFaceSize {
		return false
	}
	frameArea := frameW * frameH
	if frameArea > 0 && float32(b.Area()) > f.cfg.MaxAreaFrac*float32(frameArea) {
		return false
	}
	ar := b.AspectRatio()
	return ar >= f.cfg.MinAspect && ar <= f.cfg.MaxAspect
}
