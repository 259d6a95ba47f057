package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/adaptiveface/backends"
	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/images"
	"github.com/visionkit/adaptiveface/scenario"
)

// scriptedBackend returns one scripted response per Detect call and
// records what it was invoked with.
type scriptedBackend struct {
	id     string
	script []scriptedResponse
	calls  int
	seen   []image.Image
	closed bool
}

type scriptedResponse struct {
	cands []faces.Candidate
	err   error
}

func (s *scriptedBackend) ID() string      { return s.id }
func (s *scriptedBackend) Available() bool { return true }

func (s *scriptedBackend) Detect(img image.Image, _ float32) ([]faces.Candidate, error) {
	idx := s.calls
	s.calls++
	s.seen = append(s.seen, img)
	if idx >= len(s.script) {
		return nil, nil
	}
	return s.script[idx].cands, s.script[idx].err
}

func (s *scriptedBackend) Close() error {
	s.closed = true
	return nil
}

func respond(cands ...faces.Candidate) scriptedResponse {
	return scriptedResponse{cands: cands}
}

func box(b images.Rect, conf float32, backend string) faces.Candidate {
	return faces.Candidate{Box: b, Confidence: conf, BackendID: backend}
}

// testFrame is a checkerboard: cropped face regions score high enough
// that every acceptance strategy keeps them.
func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// harness wires scripted backends into a pipeline with a fixed quality
// score so tests control tier selection directly.
type harness struct {
	d        *AdaptiveDetector
	fast     *scriptedBackend
	accurate *scriptedBackend
	haar     *scriptedBackend
	enhanced *image.RGBA
}

func newHarness(t *testing.T, score float64) *harness {
	t.Helper()

	h := &harness{
		fast:     &scriptedBackend{id: backends.BackendFast},
		accurate: &scriptedBackend{id: backends.BackendAccurate},
		haar:     &scriptedBackend{id: backends.BackendHaar},
		enhanced: image.NewRGBA(image.Rect(0, 0, 640, 480)),
	}

	pool := backends.NewRegistry(nil)
	pool.Register(h.fast)
	pool.Register(h.accurate)
	pool.Register(h.haar)

	d, err := NewWithPool(DefaultConfig(), pool, nil)
	require.NoError(t, err)
	d.assess = func(image.Image) float64 { return score }
	d.enhance = func(image.Image, float64) image.Image { return h.enhanced }
	h.d = d
	return h
}

func TestDetectNilImage(t *testing.T) {
	h := newHarness(t, 90)

	result := h.d.Detect(nil, Options{})
	require.NotNil(t, result)
	assert.Empty(t, result.Faces)
	assert.Zero(t, result.Metrics.QualityScore)
	assert.Equal(t, scenario.ScenarioNoFaces, result.Metrics.Scenario)
	assert.NotEmpty(t, result.Metrics.RequestID)
	assert.Zero(t, h.fast.calls)
}

func TestDetectTierExclusivity(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		expectedTier  string
		fastCalls     int
		accurateCalls int
	}{
		{name: "excellent uses fast only", score: 92, expectedTier: Tier1Fast, fastCalls: 1},
		{name: "boundary 85 uses fast only", score: 85, expectedTier: Tier1Fast, fastCalls: 1},
		{name: "good uses accurate only", score: 70, expectedTier: Tier2Accurate, accurateCalls: 1},
		{name: "acceptable uses enhanced accurate", score: 45, expectedTier: Tier3Enhanced, accurateCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.score)
			h.fast.script = []scriptedResponse{respond(box(images.Rect{X1: 270, Y1: 190, X2: 370, Y2: 290}, 0.9, backends.BackendFast))}
			h.accurate.script = []scriptedResponse{respond(box(images.Rect{X1: 270, Y1: 190, X2: 370, Y2: 290}, 0.9, backends.BackendAccurate))}

			result := h.d.Detect(testFrame(), Options{})
			assert.Equal(t, tt.expectedTier, result.Metrics.TierUsed)
			assert.Equal(t, tt.fastCalls, h.fast.calls)
			assert.Equal(t, tt.accurateCalls, h.accurate.calls)
			assert.Zero(t, h.haar.calls, "haar runs only in the progressive tier")
		})
	}
}

func TestDetectTier3UsesEnhancedImage(t *testing.T) {
	h := newHarness(t, 45)
	h.accurate.script = []scriptedResponse{respond()}

	h.d.Detect(testFrame(), Options{})
	require.Len(t, h.accurate.seen, 1)
	assert.Same(t, image.Image(h.enhanced), h.accurate.seen[0])
}

func TestDetectProgressiveStopsAtFirstImprovement(t *testing.T) {
	h := newHarness(t, 10)
	h.fast.script = []scriptedResponse{respond()}
	h.accurate.script = []scriptedResponse{
		respond(), // original image
		respond( // enhanced image
			box(images.Rect{X1: 150, Y1: 100, X2: 250, Y2: 200}, 0.8, backends.BackendAccurate),
			box(images.Rect{X1: 400, Y1: 250, X2: 500, Y2: 350}, 0.7, backends.BackendAccurate),
		),
	}

	result := h.d.Detect(testFrame(), Options{SingleSubject: SingleSubjectOff})
	assert.Equal(t, Tier4Progressive, result.Metrics.TierUsed)
	assert.Equal(t, 2, result.Metrics.RawCount)
	assert.Equal(t, 1, h.fast.calls)
	assert.Equal(t, 2, h.accurate.calls)
	assert.Zero(t, h.haar.calls, "search stops once an attempt finds faces")

	// The third attempt must have received the enhanced image.
	require.Len(t, h.accurate.seen, 2)
	assert.Same(t, image.Image(h.enhanced), h.accurate.seen[1])
}

func TestDetectProgressiveFallsThroughToHaar(t *testing.T) {
	h := newHarness(t, 5)
	h.haar.script = []scriptedResponse{respond(box(images.Rect{X1: 200, Y1: 150, X2: 300, Y2: 260}, 0.85, backends.BackendHaar))}

	result := h.d.Detect(testFrame(), Options{})
	assert.Equal(t, Tier4Progressive, result.Metrics.TierUsed)
	assert.Equal(t, 1, result.Metrics.RawCount)
	assert.Equal(t, 1, h.fast.calls)
	assert.Equal(t, 2, h.accurate.calls)
	assert.Equal(t, 1, h.haar.calls)
}

func TestDetectProgressiveAllEmpty(t *testing.T) {
	h := newHarness(t, 5)

	result := h.d.Detect(testFrame(), Options{})
	assert.Empty(t, result.Faces)
	assert.Equal(t, scenario.ScenarioNoFaces, result.Metrics.Scenario)
	assert.Zero(t, result.Metrics.FinalCount)
}

func TestDetectToleratesBackendFailure(t *testing.T) {
	h := newHarness(t, 10)
	h.fast.script = []scriptedResponse{{err: errors.New("session exploded")}}
	h.accurate.script = []scriptedResponse{
		respond(box(images.Rect{X1: 150, Y1: 100, X2: 250, Y2: 200}, 0.8, backends.BackendAccurate)),
	}

	result := h.d.Detect(testFrame(), Options{})
	assert.Equal(t, 1, result.Metrics.RawCount)
	assert.Len(t, result.Faces, 1)
}

func TestDetectClearPhotoSinglePerson(t *testing.T) {
	h := newHarness(t, 90)
	h.fast.script = []scriptedResponse{respond(box(images.Rect{X1: 250, Y1: 150, X2: 390, Y2: 330}, 0.92, backends.BackendFast))}

	result := h.d.Detect(testFrame(), Options{})

	assert.Equal(t, Tier1Fast, result.Metrics.TierUsed)
	require.Len(t, result.Faces, 1)
	assert.Equal(t, scenario.ScenarioSinglePerson, result.Metrics.Scenario)
	assert.Equal(t, 1, result.Metrics.FinalCount)
	assert.NotEmpty(t, result.Metrics.RequestID)
	assert.GreaterOrEqual(t, result.Metrics.Elapsed.Nanoseconds(), int64(0))
	assert.Greater(t, result.Faces[0].RegionQuality, float32(0))
}

func TestDetectGroupPhoto(t *testing.T) {
	h := newHarness(t, 70)
	var cands []faces.Candidate
	for i := 0; i < 5; i++ {
		x := 40 + i*110
		cands = append(cands, box(images.Rect{X1: x, Y1: 200, X2: x + 80, Y2: 290}, 0.9-float32(i)*0.02, backends.BackendAccurate))
	}
	h.accurate.script = []scriptedResponse{respond(cands...)}

	result := h.d.Detect(testFrame(), Options{})

	assert.Equal(t, Tier2Accurate, result.Metrics.TierUsed)
	assert.Len(t, result.Faces, 5)
	assert.Equal(t, scenario.ScenarioSmallGroup, result.Metrics.Scenario)
	assert.Nil(t, result.Metrics.Optimizer, "five faces exceed the auto single-subject range")
}

func TestDetectSingleSubjectModeOn(t *testing.T) {
	h := newHarness(t, 90)
	h.fast.script = []scriptedResponse{respond(
		box(images.Rect{X1: 270, Y1: 190, X2: 370, Y2: 290}, 0.9, backends.BackendFast), // central principal
		box(images.Rect{X1: 40, Y1: 40, X2: 110, Y2: 110}, 0.85, backends.BackendFast),
		box(images.Rect{X1: 520, Y1: 380, X2: 600, Y2: 455}, 0.8, backends.BackendFast),
	)}

	result := h.d.Detect(testFrame(), Options{SingleSubject: SingleSubjectOn})

	require.Len(t, result.Faces, 1)
	assert.Equal(t, images.Rect{X1: 270, Y1: 190, X2: 370, Y2: 290}, result.Faces[0].Box)
	assert.Equal(t, scenario.ScenarioSinglePerson, result.Metrics.Scenario)
	require.NotNil(t, result.Metrics.Optimizer)
	assert.Equal(t, 3, result.Metrics.Optimizer.Input)
}

func TestDetectSingleSubjectModeOff(t *testing.T) {
	h := newHarness(t, 90)
	h.fast.script = []scriptedResponse{respond(
		box(images.Rect{X1: 100, Y1: 100, X2: 220, Y2: 240}, 0.9, backends.BackendFast),
		box(images.Rect{X1: 400, Y1: 100, X2: 520, Y2: 240}, 0.85, backends.BackendFast),
	)}

	result := h.d.Detect(testFrame(), Options{SingleSubject: SingleSubjectOff})

	assert.Len(t, result.Faces, 2)
	assert.Equal(t, scenario.ScenarioPair, result.Metrics.Scenario)
	assert.Nil(t, result.Metrics.Optimizer)
}

func TestDetectSingleSubjectModeAuto(t *testing.T) {
	h := newHarness(t, 90)
	h.fast.script = []scriptedResponse{respond(
		box(images.Rect{X1: 250, Y1: 150, X2: 390, Y2: 330}, 0.9, backends.BackendFast),
		box(images.Rect{X1: 40, Y1: 40, X2: 110, Y2: 110}, 0.7, backends.BackendFast),
	)}

	result := h.d.Detect(testFrame(), Options{SingleSubject: SingleSubjectAuto})

	require.Len(t, result.Faces, 1)
	assert.Equal(t, scenario.ScenarioSinglePerson, result.Metrics.Scenario)
	assert.NotNil(t, result.Metrics.Optimizer)
}

func TestDetectFileMissing(t *testing.T) {
	h := newHarness(t, 90)

	result := h.d.DetectFile("/nonexistent/photo.jpg", Options{})
	require.NotNil(t, result)
	assert.Empty(t, result.Faces)
	assert.Equal(t, scenario.ScenarioNoFaces, result.Metrics.Scenario)
}

func TestDetectorClose(t *testing.T) {
	h := newHarness(t, 90)
	require.NoError(t, h.d.Close())
	assert.True(t, h.fast.closed)
	assert.True(t, h.accurate.closed)
	assert.True(t, h.haar.closed)
}

func TestStatus(t *testing.T) {
	h := newHarness(t, 90)

	status := h.d.Status()
	assert.Equal(t, map[string]bool{
		backends.BackendFast:     true,
		backends.BackendAccurate: true,
		backends.BackendHaar:     true,
	}, status.Backends)
	assert.Equal(t, 3, status.SingleSubjectAutoMax)
	assert.Len(t, status.Scenarios, 6)
}
