// Package detector - the adaptive face detection pipeline orchestrator.
//
// A detection call runs strictly in sequence: quality assessment, tier
// selection (optionally enhancing the image first), backend invocation,
// smart filtering, then scenario classification. Concurrent calls for
// different images are independent; the only shared mutable state is the
// lazily-initialized backend handles, which initialize at most once per
// process.
//
// Operational failures never surface as errors: an unreadable image, a
// missing model, or an inference failure narrows the result and logs a
// warning. Only malformed configuration is fatal, at construction time.
package detector

import (
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visionkit/adaptiveface/backends"
	"github.com/visionkit/adaptiveface/enhance"
	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/filter"
	"github.com/visionkit/adaptiveface/images"
	"github.com/visionkit/adaptiveface/quality"
	"github.com/visionkit/adaptiveface/scenario"
)

// Tier identifiers reported in metrics.
const (
	Tier1Fast        = "tier_1_fast"
	Tier2Accurate    = "tier_2_accurate"
	Tier3Enhanced    = "tier_3_enhanced_accurate"
	Tier4Progressive = "tier_4_progressive"
)

// SingleSubjectMode controls the single-subject refinement.
type SingleSubjectMode int

const (
	// SingleSubjectAuto applies the refinement when the filtered
	// candidate count falls in [1, SingleSubjectAutoMax].
	SingleSubjectAuto SingleSubjectMode = iota
	// SingleSubjectOn forces the refinement.
	SingleSubjectOn
	// SingleSubjectOff suppresses it, for genuine multi-subject scenes.
	SingleSubjectOff
)

// Options are the per-call knobs of Detect.
type Options struct {
	SingleSubject SingleSubjectMode
}

// AdaptiveDetector routes images through the quality-adaptive detection
// pipeline. Safe for concurrent use.
type AdaptiveDetector struct {
	cfg      *Config
	pool     *backends.Registry
	filter   *filter.Filter
	selector *scenario.Selector
	log      *zap.Logger

	// Seams for deterministic tests.
	assess  func(image.Image) float64
	enhance func(image.Image, float64) image.Image
}

// New builds the pipeline with the standard backend pool: fast and
// accurate YOLO face models plus the Haar cascade fallback. Fails fast on
// malformed configuration; missing model artifacts merely leave the
// corresponding backend unavailable.
func New(cfg *Config, log *zap.Logger) (*AdaptiveDetector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool := backends.NewRegistry(log)
	pool.Register(backends.NewYOLOFace(cfg.Backends.Fast, log))
	pool.Register(backends.NewYOLOFace(cfg.Backends.Accurate, log))
	pool.Register(backends.NewHaar(cfg.Backends.Haar, log))

	return NewWithPool(cfg, pool, log)
}

// NewWithPool builds the pipeline around an existing backend registry.
// The registry must contain backends under the BackendFast,
// BackendAccurate and BackendHaar identifiers.
func NewWithPool(cfg *Config, pool *backends.Registry, log *zap.Logger) (*AdaptiveDetector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AdaptiveDetector{
		cfg:      cfg,
		pool:     pool,
		filter:   filter.New(cfg.Filter, log),
		selector: scenario.NewSelector(cfg.Strategies, log),
		log:      log,
		assess:   quality.Assess,
		enhance:  enhance.Enhance,
	}, nil
}

// Detect runs the full pipeline on a decoded image.
//
// Always returns a well-formed result: a nil image yields an empty face
// list with a zero quality score, never a panic or error.
func (d *AdaptiveDetector) Detect(img image.Image, opts Options) *Result {
	start := time.Now()
	metrics := Metrics{RequestID: uuid.NewString()}

	if img == nil || img.Bounds().Empty() {
		d.log.Warn("detection requested on empty image", zap.String("request_id", metrics.RequestID))
		metrics.Scenario = scenario.ScenarioNoFaces
		metrics.Elapsed = time.Since(start)
		return &Result{Metrics: metrics}
	}

	metrics.QualityScore = d.assess(img)

	tier, raw := d.selectTier(img, metrics.QualityScore)
	metrics.TierUsed = tier
	metrics.RawCount = len(raw)

	// The cardinality cap applies only when the caller asserts a
	// single-subject context.
	maxFaces := 0
	if opts.SingleSubject == SingleSubjectOn {
		maxFaces = d.cfg.Filter.MaxFaces
	}
	filtered, filterDebug := d.filter.Apply(faces.Wrap(raw), img, maxFaces)
	metrics.FilterDebug = filterDebug

	final, strategyUsed, tag := d.selector.Apply(filtered, img)
	metrics.StrategyUsed = strategyUsed

	if d.applySingleSubject(opts.SingleSubject, len(filtered)) && len(final) > 0 {
		refined, optDebug := scenario.OptimizeSingleSubject(final, img)
		final = refined
		metrics.Optimizer = &optDebug
		tag = scenario.Classify(len(final))
	}

	metrics.Scenario = tag
	metrics.FinalCount = len(final)
	metrics.Elapsed = time.Since(start)

	d.log.Info("adaptive detection complete",
		zap.String("request_id", metrics.RequestID),
		zap.Float64("quality", metrics.QualityScore),
		zap.String("tier", tier),
		zap.String("strategy", string(strategyUsed)),
		zap.String("scenario", string(tag)),
		zap.Int("raw", metrics.RawCount),
		zap.Int("final", metrics.FinalCount),
		zap.Duration("elapsed", metrics.Elapsed))

	return &Result{Faces: final, Metrics: metrics}
}

// DetectFile loads an image from disk and runs Detect. An unreadable or
// undecodable file is reported as an empty result with a zero quality
// score, not an error.
func (d *AdaptiveDetector) DetectFile(path string, opts Options) *Result {
	img, err := images.Load(path)
	if err != nil {
		d.log.Warn("failed to load image", zap.String("path", path), zap.Error(err))
		return d.Detect(nil, opts)
	}
	return d.Detect(img, opts)
}

// applySingleSubject decides whether the single-subject refinement runs.
func (d *AdaptiveDetector) applySingleSubject(mode SingleSubjectMode, filteredCount int) bool {
	switch mode {
	case SingleSubjectOn:
		return true
	case SingleSubjectOff:
		return false
	default:
		return filteredCount >= 1 && filteredCount <= d.cfg.SingleSubjectAutoMax
	}
}

// selectTier maps the quality score to a detection strategy and invokes
// the chosen backend(s). Never pays for the expensive backends when the
// image quality is excellent; spends effort progressively as it degrades.
func (d *AdaptiveDetector) selectTier(img image.Image, score float64) (string, []faces.Candidate) {
	switch {
	case score >= d.cfg.Tiers.Excellent:
		return Tier1Fast, d.pool.Detect(backends.BackendFast, img, 0)
	case score >= d.cfg.Tiers.Good:
		return Tier2Accurate, d.pool.Detect(backends.BackendAccurate, img, 0)
	case score >= d.cfg.Tiers.Acceptable:
		return Tier3Enhanced, d.pool.Detect(backends.BackendAccurate, d.enhance(img, score), 0)
	default:
		return Tier4Progressive, d.progressive(img, score)
	}
}

// progressive tries the backends in escalating order and stops at the
// first attempt that beats every previous one. A failed backend counts as
// zero candidates and the search continues; the attempt list is fixed, so
// the loop is bounded.
func (d *AdaptiveDetector) progressive(img image.Image, score float64) []faces.Candidate {
	attempts := []struct {
		backend  string
		enhanced bool
	}{
		{backends.BackendFast, false},
		{backends.BackendAccurate, false},
		{backends.BackendAccurate, true},
		{backends.BackendHaar, false},
	}

	var best []faces.Candidate
	var enhancedImg image.Image
	for _, attempt := range attempts {
		target := img
		if attempt.enhanced {
			if enhancedImg == nil {
				enhancedImg = d.enhance(img, score)
			}
			target = enhancedImg
		}

		cands := d.pool.Detect(attempt.backend, target, 0)
		if len(cands) > len(best) {
			best = cands
			if len(best) > 0 {
				break
			}
		}
	}
	return best
}

// Status summarizes the pipeline for operational introspection.
type Status struct {
	Backends             map[string]bool                                   `json:"backends"`
	Tiers                TierThresholds                                    `json:"tiers"`
	Strategies           map[scenario.StrategyName]scenario.StrategyParams `json:"strategies"`
	SingleSubjectAutoMax int                                               `json:"single_subject_auto_max"`
	Scenarios            []scenario.Scenario                               `json:"scenarios"`
}

// Status reports backend availability and the active policy tables.
func (d *AdaptiveDetector) Status() Status {
	availability := make(map[string]bool)
	for _, id := range d.pool.IDs() {
		if b, ok := d.pool.Get(id); ok {
			availability[id] = b.Available()
		}
	}
	return Status{
		Backends:             availability,
		Tiers:                d.cfg.Tiers,
		Strategies:           d.cfg.Strategies,
		SingleSubjectAutoMax: d.cfg.SingleSubjectAutoMax,
		Scenarios: []scenario.Scenario{
			scenario.ScenarioNoFaces,
			scenario.ScenarioSinglePerson,
			scenario.ScenarioPair,
			scenario.ScenarioSmallGroup,
			scenario.ScenarioLargeGroup,
			scenario.ScenarioCrowd,
		},
	}
}

// Close releases every backend in the pool.
func (d *AdaptiveDetector) Close() error {
	return d.pool.Close()
}
