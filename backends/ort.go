package backends

import (
	"image"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/images"
)

// ortEnvOnce guards process-wide ONNX Runtime environment setup. The
// runtime must be initialized exactly once per process; re-initialization
// is never required mid-process.
var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORTEnvironment prepares the shared ONNX Runtime environment. The
// native library location can be overridden through the
// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable.
func initORTEnvironment() error {
	ortEnvOnce.Do(func() {
		if path := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		if !ort.IsInitialized() {
			ortEnvErr = ort.InitializeEnvironment()
		}
	})
	return ortEnvErr
}

// YOLOFaceConfig configures a YOLO face detection backend.
type YOLOFaceConfig struct {
	// ID is the registry identifier, e.g. BackendFast.
	ID string `yaml:"id"`
	// ModelPath points at the ONNX model artifact.
	ModelPath string `yaml:"model_path"`
	// InputSize is the square model input edge length, typically 640.
	InputSize int `yaml:"input_size"`
	// DefaultConfidence is used when the caller passes no threshold.
	DefaultConfidence float32 `yaml:"confidence"`
	// NMSThreshold is the IoU above which raw model boxes are merged.
	NMSThreshold float32 `yaml:"nms_threshold"`
}

// YOLOFace runs a single-class YOLO face model through ONNX Runtime.
//
// The session and its tensors are created lazily on first Detect and
// reused for the lifetime of the process. Inference is serialized with a
// mutex because the session's bound tensors are mutable shared state.
type YOLOFace struct {
	cfg YOLOFaceConfig
	log *zap.Logger

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	anchors int
}

// NewYOLOFace creates a YOLO face backend. No model loading happens here;
// the first Detect call initializes the session.
func NewYOLOFace(cfg YOLOFaceConfig, log *zap.Logger) *YOLOFace {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = 0.25
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.45
	}
	return &YOLOFace{cfg: cfg, log: log}
}

// ID returns the configured registry identifier.
func (y *YOLOFace) ID() string { return y.cfg.ID }

// Available reports whether the model artifact exists on disk.
func (y *YOLOFace) Available() bool {
	info, err := os.Stat(y.cfg.ModelPath)
	return err == nil && info.Size() > 0
}

// initialize builds the ONNX Runtime session and its bound tensors.
func (y *YOLOFace) initialize() error {
	y.initOnce.Do(func() {
		if !y.Available() {
			y.initErr = errors.Errorf("model file not found: %s", y.cfg.ModelPath)
			return
		}
		if err := initORTEnvironment(); err != nil {
			y.initErr = errors.Wrap(err, "failed to initialize ONNX Runtime environment")
			return
		}

		size := int64(y.cfg.InputSize)
		// One anchor per cell of the 8/16/32-stride feature maps.
		s := y.cfg.InputSize
		y.anchors = (s/8)*(s/8) + (s/16)*(s/16) + (s/32)*(s/32)

		input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
		if err != nil {
			y.initErr = errors.Wrap(err, "failed to allocate input tensor")
			return
		}
		output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 5, int64(y.anchors)))
		if err != nil {
			input.Destroy()
			y.initErr = errors.Wrap(err, "failed to allocate output tensor")
			return
		}

		session, err := ort.NewAdvancedSession(
			y.cfg.ModelPath,
			[]string{"images"},
			[]string{"output0"},
			[]ort.ArbitraryTensor{input},
			[]ort.ArbitraryTensor{output},
			nil,
		)
		if err != nil {
			input.Destroy()
			output.Destroy()
			y.initErr = errors.Wrapf(err, "failed to create session for %s", y.cfg.ModelPath)
			return
		}

		y.input = input
		y.output = output
		y.session = session
		y.log.Info("YOLO face backend initialized",
			zap.String("backend", y.cfg.ID),
			zap.String("model", y.cfg.ModelPath),
			zap.Int("input_size", y.cfg.InputSize))
	})
	return y.initErr
}

// Detect runs face inference on the image.
//
// Arguments:
//   - img: The input image.
//   - confThreshold: Minimum confidence; <= 0 selects the backend default.
//
// Returns:
//   - Raw face candidates in original-image pixel coordinates.
//   - An error if the model is unusable or inference fails.
func (y *YOLOFace) Detect(img image.Image, confThreshold float32) ([]faces.Candidate, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := y.initialize(); err != nil {
		return nil, err
	}
	if confThreshold <= 0 {
		confThreshold = y.cfg.DefaultConfidence
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	copy(y.input.GetData(), chwTensor(img, y.cfg.InputSize))
	if err := y.session.Run(); err != nil {
		return nil, errors.Wrapf(err, "inference failed for %s", y.cfg.ID)
	}

	bounds := img.Bounds()
	return y.decode(y.output.GetData(), bounds.Dx(), bounds.Dy(), confThreshold), nil
}

// decode converts the raw [1, 5, anchors] model output into candidates.
// Rows are planar: cx, cy, w, h, confidence, each spanning all anchors,
// in model-input pixel scale.
func (y *YOLOFace) decode(out []float32, origW, origH int, confThreshold float32) []faces.Candidate {
	if len(out) < 5*y.anchors {
		y.log.Warn("unexpected model output size",
			zap.String("backend", y.cfg.ID),
			zap.Int("got", len(out)),
			zap.Int("want", 5*y.anchors))
		return nil
	}

	sx := float32(origW) / float32(y.cfg.InputSize)
	sy := float32(origH) / float32(y.cfg.InputSize)

	var cands []faces.Candidate
	for a := 0; a < y.anchors; a++ {
		conf := out[4*y.anchors+a]
		if conf < confThreshold {
			continue
		}

		cx := out[a]
		cy := out[y.anchors+a]
		w := out[2*y.anchors+a]
		h := out[3*y.anchors+a]

		box := images.Rect{
			X1: int((cx - w/2) * sx),
			Y1: int((cy - h/2) * sy),
			X2: int((cx + w/2) * sx),
			Y2: int((cy + h/2) * sy),
		}
		box.X1 = max(0, box.X1)
		box.Y1 = max(0, box.Y1)
		box.X2 = min(origW, box.X2)
		box.Y2 = min(origH, box.Y2)

		// Reject boxes no face model should emit: slivers and noise.
		ar := box.AspectRatio()
		if box.Width() <= 15 || box.Height() <= 15 || ar < 0.3 || ar > 3.0 {
			continue
		}

		cands = append(cands, faces.Candidate{
			Box:        box,
			Confidence: conf,
			BackendID:  y.cfg.ID,
		})
	}

	return mergeOverlapping(cands, y.cfg.NMSThreshold)
}

// mergeOverlapping performs greedy non-maximum suppression over the raw
// model output so the backend contract returns distinct faces.
func mergeOverlapping(cands []faces.Candidate, iouThreshold float32) []faces.Candidate {
	if len(cands) == 0 {
		return cands
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})

	kept := make([]faces.Candidate, 0, len(cands))
	used := make([]bool, len(cands))
	for i := range cands {
		if used[i] {
			continue
		}
		kept = append(kept, cands[i])
		used[i] = true
		for j := i + 1; j < len(cands); j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(cands[i].Box, cands[j].Box) > iouThreshold {
				used[j] = true
			}
		}
	}
	return kept
}

// Close destroys the session and its tensors.
func (y *YOLOFace) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	var firstErr error
	if y.session != nil {
		if err := y.session.Destroy(); err != nil {
			firstErr = errors.Wrap(err, "error destroying ORT session")
		}
		y.session = nil
	}
	if y.input != nil {
		y.input.Destroy()
		y.input = nil
	}
	if y.output != nil {
		y.output.Destroy()
		y.output = nil
	}
	return firstErr
}
