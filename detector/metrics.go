package detector

import (
	"time"

	"github.com/visionkit/adaptiveface/faces"
	"github.com/visionkit/adaptiveface/filter"
	"github.com/visionkit/adaptiveface/scenario"
)

// Metrics is the per-call diagnostic record returned alongside the final
// face list. Constructed once per call, never mutated after return.
type Metrics struct {
	RequestID    string                   `json:"request_id"`
	QualityScore float64                  `json:"quality_score"`
	TierUsed     string                   `json:"tier_used"`
	StrategyUsed scenario.StrategyName    `json:"strategy_used"`
	Scenario     scenario.Scenario        `json:"scenario"`
	RawCount     int                      `json:"raw_count"`
	FinalCount   int                      `json:"final_count"`
	Elapsed      time.Duration            `json:"elapsed"`
	FilterDebug  filter.Debug             `json:"filter_debug"`
	Optimizer    *scenario.OptimizerDebug `json:"optimizer,omitempty"`
}

// Result is the outcome of one detection call: the final candidates in
// descending composite-score order plus the call metrics. Owned by the
// caller.
type Result struct {
	Faces   []faces.Filtered `json:"faces"`
	Metrics Metrics          `json:"metrics"`
}
