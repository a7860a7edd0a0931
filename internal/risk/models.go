// Package risk implements the weighted risk scoring model: per-factor
// sub-attribute scoring over configured lookup tables, aggregation into a
// single model score, and the discrete risk levels derived from both.
package risk

// FactorType enumerates the supported risk dimensions.
type FactorType string

const (
	FactorDemographic FactorType = "demographic"
	FactorFinancial   FactorType = "financial"
	FactorBehavioral  FactorType = "behavioral"
	FactorGeographic  FactorType = "geographic"
	FactorDocument    FactorType = "document"
	FactorIdentity    FactorType = "identity"
	FactorTransaction FactorType = "transaction"
	FactorCompliance  FactorType = "compliance"
)

// Level is a discrete risk bucket.
type Level string

const (
	LevelVeryLow Level = "very_low"
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
)

// Level thresholds, shared by per-factor and aggregate scores.
const (
	thresholdLow    = 0.4
	thresholdMedium = 0.6
	thresholdHigh   = 0.8
)

// LevelFor buckets a score in [0,1] into a discrete level.
func LevelFor(score float64) Level {
	switch {
	case score >= thresholdHigh:
		return LevelHigh
	case score >= thresholdMedium:
		return LevelMedium
	case score >= thresholdLow:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// Ordinal orders levels for at-or-below comparisons.
func (l Level) Ordinal() int {
	switch l {
	case LevelVeryLow:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return 3
	}
}

// Factor is one weighted risk dimension. Config carries the lookup tables
// (range lists and categorical maps) keyed per sub-attribute; Weights
// overrides the per-sub-attribute default weights.
type Factor struct {
	ID      string             `json:"id" yaml:"id"`
	Type    FactorType         `json:"type" yaml:"type"`
	Config  map[string]any     `json:"config,omitempty" yaml:"config,omitempty"`
	Weights map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Model aggregates factor scores into one weighted score. Parameters maps
// factor IDs to weights; unnamed factors default to weight 1.
type Model struct {
	ID         string             `json:"id" yaml:"id"`
	Parameters map[string]float64 `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// FactorScore is the outcome of assessing one factor against user data.
type FactorScore struct {
	FactorID   string             `json:"factor_id"`
	Type       FactorType         `json:"type"`
	Score      float64            `json:"score"`
	Level      Level              `json:"level"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Assessment is a full risk evaluation for one case.
type Assessment struct {
	ModelID      string        `json:"model_id"`
	Score        float64       `json:"score"`
	Level        Level         `json:"level"`
	FactorScores []FactorScore `json:"factor_scores"`
}
