package scenario

import (
	"image"

	"github.com/chewxy/math32"

	"github.com/visionkit/adaptiveface/faces"
)

// OptimizerDebug records how the single-subject refinement ranked the
// candidates. For observability only.
type OptimizerDebug struct {
	Input      int       `json:"input"`
	Scores     []float32 `json:"scores"`
	ChosenIdx  int       `json:"chosen_idx"`
	TiebreakOn bool      `json:"tiebreak_applied"`
}

// OptimizeSingleSubject collapses multiple marginal detections into the
// one most likely principal face. Identification and registration
// workflows need exactly one authoritative face even when bystanders
// appear in frame.
//
// Candidates are re-ranked by a main-subject score combining region
// quality, confidence, size relative to the frame, centrality, and aspect
// ratio. When the top two scores are close, the markedly larger face wins.
//
// Never increases the candidate count; a list of size one is returned
// unchanged. Must not be applied to genuine multi-subject scenarios.
func OptimizeSingleSubject(cands []faces.Filtered, img image.Image) ([]faces.Filtered, OptimizerDebug) {
	debug := OptimizerDebug{Input: len(cands)}
	if len(cands) <= 1 {
		return cands, debug
	}

	scores := make([]float32, len(cands))
	for i, c := range cands {
		scores[i] = mainSubjectScore(c, img)
	}
	debug.Scores = scores

	best, second := 0, -1
	for i := 1; i < len(cands); i++ {
		if scores[i] > scores[best] {
			second = best
			best = i
		} else if second < 0 || scores[i] > scores[second] {
			second = i
		}
	}

	// Ambiguous ranking: prefer the clearly larger face.
	if second >= 0 && scores[best]-scores[second] < 15 {
		if float32(cands[second].Box.Area()) > 1.5*float32(cands[best].Box.Area()) {
			best = second
			debug.TiebreakOn = true
		}
	}

	debug.ChosenIdx = best
	return []faces.Filtered{cands[best]}, debug
}

// mainSubjectScore rates how likely a candidate is the principal subject
// of a single-person photo, on a 0-100 scale:
//
//	region quality   up to 40
//	confidence       up to 20
//	relative size    up to 20
//	centrality       up to 10
//	aspect ratio     up to 10
func mainSubjectScore(c faces.Filtered, img image.Image) float32 {
	score := math32.Min(40, c.RegionQuality*0.4)
	score += c.Confidence * 20

	var frameW, frameH int
	if img != nil {
		bounds := img.Bounds()
		frameW, frameH = bounds.Dx(), bounds.Dy()
	}
	frameArea := frameW * frameH

	if frameArea > 0 {
		areaRatio := float32(c.Box.Area()) / float32(frameArea)
		switch {
		case areaRatio >= 0.05 && areaRatio <= 0.30:
			score += 20 // ideal principal-subject size
		case areaRatio >= 0.03 && areaRatio <= 0.50:
			score += 15
		case areaRatio > 0.50:
			score += 5 // extreme close-up or false positive
		default:
			score += 2 // likely background face
		}

		center := c.Box.Center()
		dx := (float32(center.X) - float32(frameW)/2) / float32(frameW)
		dy := (float32(center.Y) - float32(frameH)/2) / float32(frameH)
		centerDistance := math32.Sqrt(dx*dx + dy*dy)
		score += math32.Max(0, 10*(1-centerDistance*2))
	}

	ar := c.Box.AspectRatio()
	switch {
	case ar >= 0.8 && ar <= 1.2:
		score += 10
	case ar >= 0.6 && ar <= 1.4:
		score += 7
	default:
		score += 2
	}

	return score
}
