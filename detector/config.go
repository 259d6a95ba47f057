package detector

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/visionkit/adaptiveface/backends"
	"github.com/visionkit/adaptiveface/filter"
	"github.com/visionkit/adaptiveface/scenario"
)

// TierThresholds are the quality-score cut points of the four-band tier
// policy. Scores at or above Excellent run the fast backend only; at or
// above Good the accurate backend; at or above Acceptable the accurate
// backend on an enhanced image; below Acceptable the progressive search.
type TierThresholds struct {
	Excellent  float64 `yaml:"excellent"`
	Good       float64 `yaml:"good"`
	Acceptable float64 `yaml:"acceptable"`
}

// BackendsConfig describes the model artifacts of the backend pool.
type BackendsConfig struct {
	Fast     backends.YOLOFaceConfig `yaml:"fast"`
	Accurate backends.YOLOFaceConfig `yaml:"accurate"`
	Haar     backends.HaarConfig     `yaml:"haar"`
}

// Config is the full pipeline configuration. Malformed configuration is
// the one fatal error class: it fails New before any detection call.
type Config struct {
	Tiers    TierThresholds `yaml:"tiers"`
	Backends BackendsConfig `yaml:"backends"`
	Filter   filter.Config  `yaml:"filter"`

	Strategies map[scenario.StrategyName]scenario.StrategyParams `yaml:"strategies"`

	// SingleSubjectAutoMax is the filtered-candidate count at or below
	// which auto mode applies the single-subject refinement. A tunable
	// heuristic default, not a validated policy.
	SingleSubjectAutoMax int `yaml:"single_subject_auto_max"`
}

// DefaultConfig returns the stock pipeline configuration. Model paths are
// empty; backends without artifacts degrade to unavailable.
func DefaultConfig() *Config {
	return &Config{
		Tiers: TierThresholds{
			Excellent:  85,
			Good:       60,
			Acceptable: 30,
		},
		Backends: BackendsConfig{
			Fast:     backends.YOLOFaceConfig{ID: backends.BackendFast, InputSize: 640, DefaultConfidence: 0.25},
			Accurate: backends.YOLOFaceConfig{ID: backends.BackendAccurate, InputSize: 640, DefaultConfidence: 0.30},
			Haar:     backends.HaarConfig{ID: backends.BackendHaar},
		},
		Filter:               filter.DefaultConfig(),
		Strategies:           scenario.DefaultStrategies(),
		SingleSubjectAutoMax: 3,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks threshold ordering and strategy parameter sanity.
func (c *Config) Validate() error {
	t := c.Tiers
	if t.Acceptable < 0 || t.Excellent > 100 {
		return errors.Errorf("tier thresholds must lie in [0,100], got %+v", t)
	}
	if !(t.Acceptable < t.Good && t.Good < t.Excellent) {
		return errors.Errorf("tier thresholds must be strictly increasing, got %+v", t)
	}

	for _, name := range []scenario.StrategyName{
		scenario.StrategyConservative,
		scenario.StrategyBalanced,
		scenario.StrategyAggressive,
	} {
		params, ok := c.Strategies[name]
		if !ok {
			return errors.Errorf("missing strategy %q", name)
		}
		if params.OverlapThreshold <= 0 || params.OverlapThreshold > 1 {
			return errors.Errorf("strategy %q: overlap threshold must lie in (0,1], got %v",
				name, params.OverlapThreshold)
		}
		if params.QualityThreshold < 0 || params.QualityThreshold > 100 {
			return errors.Errorf("strategy %q: quality threshold must lie in [0,100], got %v",
				name, params.QualityThreshold)
		}
	}

	if c.Filter.MinAspect > 0 && c.Filter.MaxAspect > 0 && c.Filter.MinAspect >= c.Filter.MaxAspect {
		return errors.Errorf("filter aspect bounds inverted: [%v, %v]",
			c.Filter.MinAspect, c.Filter.MaxAspect)
	}
	if c.Filter.IoUThreshold < 0 || c.Filter.IoUThreshold > 1 {
		return errors.Errorf("filter IoU threshold must lie in [0,1], got %v", c.Filter.IoUThreshold)
	}

	if c.SingleSubjectAutoMax < 1 {
		return errors.Errorf("single_subject_auto_max must be at least 1, got %d",
			c.SingleSubjectAutoMax)
	}
	return nil
}
