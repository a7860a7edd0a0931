package tier

import (
	"fmt"
	"sort"

	"credence/internal/risk"
	"credence/internal/rules"
)

// Resolver selects the best matching tier for a candidate. The requirement
// evaluators are registered once at construction; a requirement key outside
// the table is skipped and never counts toward the applicable set.
type Resolver struct {
	evaluators map[string]requirementFunc
}

// requirementFunc tests one configured requirement value against the inputs.
type requirementFunc func(required any, inputs rules.Inputs) bool

// NewResolver builds the resolver with its requirement table.
func NewResolver() *Resolver {
	r := &Resolver{}
	r.evaluators = map[string]requirementFunc{
		"risk_level":                    r.riskLevelAtOrBelow,
		"document_verification":         verificationStatus(func(in rules.Inputs) map[string]any { return in.DocumentVerification }),
		"identity_verification":         verificationStatus(func(in rules.Inputs) map[string]any { return in.IdentityVerification }),
		"min_income":                    numericAtLeast("income"),
		"min_net_worth":                 numericAtLeast("net_worth"),
		"min_trading_experience":        numericAtLeast("trading_experience"),
		"min_age":                       numericAtLeast("age"),
		"min_credit_score":              numericAtLeast("credit_score"),
		"employment_status":             memberOf("employment_status"),
		"allowed_countries":             memberOf("country"),
		"required_documents":            allPresent("documents"),
		"required_verification_methods": allPresent("verification_methods"),
		"compliance_checks":             r.complianceChecks,
	}
	return r
}

// DetermineTier tries tiers from the highest level down and selects the first
// whose eligibility score meets its own threshold. When none qualifies, the
// lowest-level tier is force-assigned.
func (r *Resolver) DetermineTier(tiers []Tier, inputs rules.Inputs) (Result, error) {
	if len(tiers) == 0 {
		return Result{}, fmt.Errorf("no tiers configured")
	}

	ordered := make([]Tier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Level > ordered[j].Level
	})

	var considered []ConsideredTier
	for _, candidate := range ordered {
		score, met := r.EligibilityScore(candidate, inputs)
		if score >= candidate.Threshold() {
			return Result{
				Tier:             candidate,
				Reason:           fmt.Sprintf("met %s requirements", candidate.Name),
				EligibilityScore: score,
				RequirementsMet:  met,
				Considered:       considered,
			}, nil
		}
		considered = append(considered, ConsideredTier{TierID: candidate.ID, Level: candidate.Level, Score: score})
	}

	lowest := ordered[len(ordered)-1]
	score, met := r.EligibilityScore(lowest, inputs)
	return Result{
		Tier:             lowest,
		Reason:           "no higher tier requirements met",
		EligibilityScore: score,
		RequirementsMet:  met,
		Considered:       considered,
	}, nil
}

// EligibilityScore computes met/applicable over the tier's configured
// requirements. Keys the resolver does not understand are skipped so an
// unknown key can never sink a tier. A tier with no applicable requirements
// scores a full 1.
func (r *Resolver) EligibilityScore(t Tier, inputs rules.Inputs) (float64, map[string]bool) {
	met := map[string]bool{}
	applicable := 0
	satisfied := 0

	for key, required := range t.Requirements {
		evaluate, known := r.evaluators[key]
		if !known {
			continue
		}
		applicable++
		ok := evaluate(required, inputs)
		met[key] = ok
		if ok {
			satisfied++
		}
	}

	if applicable == 0 {
		return 1, met
	}
	return clamp01(float64(satisfied) / float64(applicable)), met
}

// riskLevelAtOrBelow passes when the candidate's assessed risk level is at or
// below the required ordinal on the very_low..high scale.
func (r *Resolver) riskLevelAtOrBelow(required any, inputs rules.Inputs) bool {
	requiredLevel, ok := required.(string)
	if !ok {
		return false
	}
	actual, found := rules.ResolvePath(inputs.RiskAssessment, "risk_level")
	if !found {
		return false
	}
	actualLevel, ok := actual.(string)
	if !ok {
		return false
	}
	return risk.Level(actualLevel).Ordinal() <= risk.Level(requiredLevel).Ordinal()
}

// complianceChecks requires every named check to be true in the candidate's
// compliance_checks record.
func (r *Resolver) complianceChecks(required any, inputs rules.Inputs) bool {
	names, ok := toStringSlice(required)
	if !ok {
		return false
	}
	checksRaw, found := rules.ResolvePath(inputs.UserData, "compliance_checks")
	if !found {
		return false
	}
	checks, ok := checksRaw.(map[string]any)
	if !ok {
		return false
	}
	for _, name := range names {
		passed, ok := checks[name].(bool)
		if !ok || !passed {
			return false
		}
	}
	return true
}

// verificationStatus requires the referenced verification record to carry
// status verified. A configured false means the tier does not require it and
// the requirement is trivially met.
func verificationStatus(record func(rules.Inputs) map[string]any) requirementFunc {
	return func(required any, inputs rules.Inputs) bool {
		if want, ok := required.(bool); ok && !want {
			return true
		}
		status, found := rules.ResolvePath(record(inputs), "status")
		return found && status == "verified"
	}
}

func numericAtLeast(field string) requirementFunc {
	return func(required any, inputs rules.Inputs) bool {
		threshold, ok := toFloat(required)
		if !ok {
			return false
		}
		raw, found := rules.ResolvePath(inputs.UserData, field)
		if !found {
			return false
		}
		value, ok := toFloat(raw)
		return ok && value >= threshold
	}
}

func memberOf(field string) requirementFunc {
	return func(required any, inputs rules.Inputs) bool {
		allowed, ok := toStringSlice(required)
		if !ok {
			return false
		}
		raw, found := rules.ResolvePath(inputs.UserData, field)
		if !found {
			return false
		}
		value, ok := raw.(string)
		if !ok {
			return false
		}
		for _, candidate := range allowed {
			if candidate == value {
				return true
			}
		}
		return false
	}
}

// allPresent requires every listed item to be present in the candidate's
// list-valued field.
func allPresent(field string) requirementFunc {
	return func(required any, inputs rules.Inputs) bool {
		wanted, ok := toStringSlice(required)
		if !ok {
			return false
		}
		raw, found := rules.ResolvePath(inputs.UserData, field)
		if !found {
			return false
		}
		have, ok := toStringSlice(raw)
		if !ok {
			return false
		}
		haveSet := make(map[string]struct{}, len(have))
		for _, item := range have {
			haveSet[item] = struct{}{}
		}
		for _, item := range wanted {
			if _, present := haveSet[item]; !present {
				return false
			}
		}
		return true
	}
}

func toStringSlice(v any) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		return items, true
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
