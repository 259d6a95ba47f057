package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/images"
)

func TestNewYOLOFaceDefaults(t *testing.T) {
	y := NewYOLOFace(YOLOFaceConfig{ID: BackendFast}, nil)
	assert.Equal(t, 640, y.cfg.InputSize)
	assert.InDelta(t, 0.25, y.cfg.DefaultConfidence, 0.001)
	assert.InDelta(t, 0.45, y.cfg.NMSThreshold, 0.001)
}

func TestYOLOFaceUnavailableWithoutModel(t *testing.T) {
	y := NewYOLOFace(YOLOFaceConfig{ID: BackendFast, ModelPath: "/nonexistent/model.onnx"}, nil)
	assert.False(t, y.Available())

	_, err := y.Detect(testImage(), 0)
	assert.Error(t, err)
}

// syntheticOutput builds a planar [1, 5, anchors] output buffer with the
// given detections written into the first anchors.
func syntheticOutput(anchors int, dets [][5]float32) []float32 {
	out := make([]float32, 5*anchors)
	for i, d := range dets {
		out[i] = d[0]           // cx
		out[anchors+i] = d[1]   // cy
		out[2*anchors+i] = d[2] // w
		out[3*anchors+i] = d[3] // h
		out[4*anchors+i] = d[4] // confidence
	}
	return out
}

func TestYOLOFaceDecode(t *testing.T) {
	y := NewYOLOFace(YOLOFaceConfig{ID: BackendFast, InputSize: 640}, nil)
	y.anchors = 100

	out := syntheticOutput(100, [][5]float32{
		{320, 320, 100, 120, 0.9}, // solid detection at the center
		{100, 100, 50, 60, 0.1},   // below threshold
		{500, 200, 8, 8, 0.8},     // too small
		{200, 400, 300, 40, 0.8},  // sliver aspect
	})

	cands := y.decode(out, 640, 640, 0.25)
	require.Len(t, cands, 1)
	assert.Equal(t, images.Rect{X1: 270, Y1: 260, X2: 370, Y2: 380}, cands[0].Box)
	assert.InDelta(t, 0.9, cands[0].Confidence, 0.001)
	assert.Equal(t, BackendFast, cands[0].BackendID)
}

func TestYOLOFaceDecodeScalesToOriginal(t *testing.T) {
	y := NewYOLOFace(YOLOFaceConfig{ID: BackendAccurate, InputSize: 640}, nil)
	y.anchors = 10

	// A box at model center must land at image center after rescaling.
	out := syntheticOutput(10, [][5]float32{{320, 320, 160, 160, 0.9}})

	cands := y.decode(out, 1280, 960, 0.25)
	require.Len(t, cands, 1)
	assert.Equal(t, images.Rect{X1: 480, Y1: 360, X2: 800, Y2: 600}, cands[0].Box)
}

func TestYOLOFaceDecodeTruncatedOutput(t *testing.T) {
	y := NewYOLOFace(YOLOFaceConfig{ID: BackendFast}, nil)
	y.anchors = 100
	assert.Nil(t, y.decode(make([]float32, 10), 640, 640, 0.25))
}

func TestMergeOverlapping(t *testing.T) {
	cands := []faces.Candidate{
		{Box: images.Rect{X1: 100, Y1: 100, X2: 200, Y2: 200}, Confidence: 0.7},
		{Box: images.Rect{X1: 110, Y1: 100, X2: 210, Y2: 200}, Confidence: 0.9}, // overlaps, higher confidence
		{Box: images.Rect{X1: 400, Y1: 100, X2: 500, Y2: 200}, Confidence: 0.8},
	}

	kept := mergeOverlapping(cands, 0.45)
	require.Len(t, kept, 2)
	assert.InDelta(t, 0.9, kept[0].Confidence, 0.001, "highest confidence survives the merge")
	assert.InDelta(t, 0.8, kept[1].Confidence, 0.001)
}

func TestMergeOverlappingEmpty(t *testing.T) {
	assert.Empty(t, mergeOverlapping(nil, 0.45))
}
