// Package tier implements the tier eligibility resolver: scoring a candidate
// against each tier's configured requirement set and selecting the most
// privileged tier whose threshold is met.
package tier

// DefaultMinEligibilityScore applies when a tier does not configure its own
// threshold.
const DefaultMinEligibilityScore = 0.8

// Tier is a privilege level with its own eligibility requirements. Higher
// Level means more privileged. Requirements maps requirement keys to a value
// or range understood by the resolver; keys a tier does not configure are
// skipped entirely.
type Tier struct {
	ID                  string         `json:"id" yaml:"id"`
	Name                string         `json:"name" yaml:"name"`
	Level               int            `json:"level" yaml:"level"`
	Requirements        map[string]any `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	MinEligibilityScore float64        `json:"min_eligibility_score,omitempty" yaml:"min_eligibility_score,omitempty"`
	Benefits            []string       `json:"benefits,omitempty" yaml:"benefits,omitempty"`
	Restrictions        []string       `json:"restrictions,omitempty" yaml:"restrictions,omitempty"`
}

// Threshold returns the tier's eligibility threshold, defaulted.
func (t Tier) Threshold() float64 {
	if t.MinEligibilityScore > 0 {
		return t.MinEligibilityScore
	}
	return DefaultMinEligibilityScore
}

// Result reports the selected tier, the reason, and the eligibility score the
// candidate achieved against it.
type Result struct {
	Tier             Tier             `json:"tier"`
	Reason           string           `json:"reason"`
	EligibilityScore float64          `json:"eligibility_score"`
	RequirementsMet  map[string]bool  `json:"requirements_met,omitempty"`
	Considered       []ConsideredTier `json:"considered,omitempty"`
}

// ConsideredTier records the score a rejected tier achieved, for operator
// visibility into why a lower tier was assigned.
type ConsideredTier struct {
	TierID string  `json:"tier_id"`
	Level  int     `json:"level"`
	Score  float64 `json:"score"`
}
