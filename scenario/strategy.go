package scenario

import (
	"image"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/images"
)

// StrategyName identifies an acceptance-threshold policy.
type StrategyName string

const (
	// StrategyConservative keeps only high-confidence, high-quality
	// candidates. Minimizes false positives, risks missing faint faces.
	StrategyConservative StrategyName = "conservative"
	// StrategyBalanced is the default middle ground.
	StrategyBalanced StrategyName = "balanced"
	// StrategyAggressive lowers the acceptance bar to avoid
	// under-counting group shots, accepting more false positives.
	StrategyAggressive StrategyName = "aggressive"
)

// strategyOrder fixes evaluation order so score ties resolve
// deterministically toward the stricter strategy.
var strategyOrder = []StrategyName{StrategyConservative, StrategyBalanced, StrategyAggressive}

// StrategyParams are the acceptance thresholds of one strategy.
type StrategyParams struct {
	// OverlapThreshold is the IoU above which candidates are merged.
	OverlapThreshold float32 `yaml:"overlap_threshold"`
	// QualityThreshold is the minimum region quality to accept.
	QualityThreshold float32 `yaml:"quality_threshold"`
}

// DefaultStrategies returns the stock strategy table.
func DefaultStrategies() map[StrategyName]StrategyParams {
	return map[StrategyName]StrategyParams{
		StrategyConservative: {OverlapThreshold: 0.3, QualityThreshold: 20},
		StrategyBalanced:     {OverlapThreshold: 0.4, QualityThreshold: 15},
		StrategyAggressive:   {OverlapThreshold: 0.5, QualityThreshold: 10},
	}
}

// Framing is the coarse image-context guess driving strategy scoring.
type Framing string

const (
	// FramingPortrait is a square-ish frame with at most two candidates.
	FramingPortrait Framing = "portrait"
	// FramingPair is exactly two candidates.
	FramingPair Framing = "pair"
	// FramingGroup is a wide frame with several candidates.
	FramingGroup Framing = "group"
	// FramingClassroom is a large frame with many candidates.
	FramingClassroom Framing = "classroom"
	// FramingGeneral is everything else.
	FramingGeneral Framing = "general"
)

// Context captures the coarse image features the selector scores against.
type Context struct {
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	Framing     Framing `json:"framing"`
}

// AnalyzeContext guesses the likely framing from frame geometry and the
// filtered candidate count.
func AnalyzeContext(img image.Image, candidateCount int) Context {
	ctx := Context{Framing: FramingGeneral}
	if img == nil {
		return ctx
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if h <= 0 {
		return ctx
	}
	ctx.AspectRatio = float64(w) / float64(h)
	ctx.Area = w * h

	switch {
	case ctx.AspectRatio > 0.7 && ctx.AspectRatio < 1.3 && candidateCount <= 2:
		ctx.Framing = FramingPortrait
	case ctx.AspectRatio > 1.3 && candidateCount >= 3:
		ctx.Framing = FramingGroup
	case ctx.Area > 1_000_000 && candidateCount >= 5:
		ctx.Framing = FramingClassroom
	case candidateCount == 2:
		ctx.Framing = FramingPair
	}
	return ctx
}

// Selector picks the acceptance strategy whose behavior best explains the
// candidate set given the image framing.
type Selector struct {
	strategies map[StrategyName]StrategyParams
	log        *zap.Logger
}

// NewSelector creates a strategy selector. A nil strategy table selects
// the defaults.
func NewSelector(strategies map[StrategyName]StrategyParams, log *zap.Logger) *Selector {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{strategies: strategies, log: log}
}

// strategyResult is one strategy's outcome on the candidate set.
type strategyResult struct {
	kept        []faces.Filtered
	avgQuality  float64
	consistency float64
}

// Apply evaluates every strategy against the filtered candidates, scores
// them against the image context, and returns the winning strategy's
// candidates in descending composite order.
//
// Returns:
//   - The accepted candidates.
//   - The winning strategy name.
//   - The scenario tag derived from the final count.
func (s *Selector) Apply(cands []faces.Filtered, img image.Image) ([]faces.Filtered, StrategyName, Scenario) {
	if len(cands) == 0 {
		return nil, StrategyBalanced, ScenarioNoFaces
	}

	ctx := AnalyzeContext(img, len(cands))

	results := make(map[StrategyName]strategyResult, len(s.strategies))
	for _, name := range strategyOrder {
		params, ok := s.strategies[name]
		if !ok {
			continue
		}
		results[name] = s.run(cands, params)
	}

	best, bestScore := StrategyName(""), math.Inf(-1)
	for _, name := range strategyOrder {
		result, ok := results[name]
		if !ok {
			continue
		}
		score := s.score(result, ctx)
		s.log.Debug("strategy scored",
			zap.String("strategy", string(name)),
			zap.Int("faces", len(result.kept)),
			zap.Float64("score", score))
		if score > bestScore {
			best, bestScore = name, score
		}
	}

	final := adjustConfidence(results[best].kept)
	sort.SliceStable(final, func(i, j int) bool {
		return final[i].Composite() > final[j].Composite()
	})
	return final, best, Classify(len(final))
}

// run applies one strategy: quality threshold, then greedy overlap merge
// ranked by a quality-weighted key.
func (s *Selector) run(cands []faces.Filtered, params StrategyParams) strategyResult {
	var sum, sumSq float64
	for _, c := range cands {
		q := float64(c.RegionQuality)
		sum += q
		sumSq += q * q
	}
	n := float64(len(cands))
	avg := sum / n
	variance := sumSq/n - avg*avg
	if variance < 0 {
		variance = 0
	}
	std := 0.0
	if len(cands) > 1 {
		std = math.Sqrt(variance)
	}

	qualified := make([]faces.Filtered, 0, len(cands))
	for _, c := range cands {
		if c.RegionQuality >= params.QualityThreshold {
			qualified = append(qualified, c)
		}
	}

	// Quality dominates confidence when deciding which duplicate to keep.
	sort.SliceStable(qualified, func(i, j int) bool {
		ki := qualified[i].RegionQuality*0.6 + qualified[i].Confidence*0.4
		kj := qualified[j].RegionQuality*0.6 + qualified[j].Confidence*0.4
		return ki > kj
	})
	kept := make([]faces.Filtered, 0, len(qualified))
	for _, c := range qualified {
		overlaps := false
		for _, k := range kept {
			if images.CalculateIoU(c.Box, k.Box) > params.OverlapThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}

	return strategyResult{
		kept:        kept,
		avgQuality:  avg,
		consistency: avg - std,
	}
}

// score rates a strategy outcome against the image context.
func (s *Selector) score(result strategyResult, ctx Context) float64 {
	score := result.consistency * 0.4
	count := len(result.kept)

	switch {
	case ctx.Framing == FramingPortrait && count == 1:
		score += 30
	case ctx.Framing == FramingGroup && count >= 2:
		score += 20
	case ctx.Framing == FramingClassroom && count >= 3:
		score += 25
	}

	// Penalize counts implausible for the frame size.
	expectedMax := max(1, ctx.Area/50_000)
	if count > expectedMax*2 {
		score -= 15
	}

	if result.avgQuality > 60 {
		score += 10
	} else if result.avgQuality > 40 {
		score += 5
	}
	return score
}

// adjustConfidence rescales confidences by quality relative to the best
// candidate, so a markedly sharper face outranks its marginal peers.
func adjustConfidence(cands []faces.Filtered) []faces.Filtered {
	if len(cands) <= 1 {
		return cands
	}
	var maxQ float32
	for _, c := range cands {
		if c.RegionQuality > maxQ {
			maxQ = c.RegionQuality
		}
	}
	if maxQ <= 0 {
		return cands
	}

	out := make([]faces.Filtered, len(cands))
	copy(out, cands)
	for i := range out {
		relative := out[i].RegionQuality / maxQ
		adjusted := out[i].Confidence * (0.5 + 0.5*relative)
		if adjusted > 0.99 {
			adjusted = 0.99
		}
		out[i].Confidence = adjusted
	}
	return out
}
