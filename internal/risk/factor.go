package risk

import (
	"strconv"

	"credence/internal/rules"
)

// defaultSubRisk applies when a sub-attribute has no lookup table or no
// matching entry: unknown data is treated as middling risk, not zero.
const defaultSubRisk = 0.5

// lookupKind distinguishes the two sub-attribute scoring patterns.
type lookupKind int

const (
	lookupRange lookupKind = iota
	lookupCategory
)

// subAttribute describes one contributor to a factor score: which field of
// the user data it reads, which config table scores it, and its default
// weight when the factor does not override it.
type subAttribute struct {
	name          string
	field         string
	configKey     string
	kind          lookupKind
	defaultWeight float64
}

// factorSubAttributes fixes the sub-attribute layout per factor type.
// Default weights deliberately do not sum to 1 for every type; the factor
// score is clamped after summation (source-compatible behavior).
var factorSubAttributes = map[FactorType][]subAttribute{
	FactorDemographic: {
		{name: "age", field: "age", configKey: "age_ranges", kind: lookupRange, defaultWeight: 0.5},
		{name: "nationality", field: "nationality", configKey: "nationality_risk", kind: lookupCategory, defaultWeight: 0.5},
	},
	FactorFinancial: {
		{name: "income", field: "income", configKey: "income_ranges", kind: lookupRange, defaultWeight: 0.4},
		{name: "net_worth", field: "net_worth", configKey: "net_worth_ranges", kind: lookupRange, defaultWeight: 0.3},
		{name: "credit_score", field: "credit_score", configKey: "credit_score_ranges", kind: lookupRange, defaultWeight: 0.3},
	},
	FactorBehavioral: {
		{name: "account_activity", field: "account_activity", configKey: "activity_risk", kind: lookupCategory, defaultWeight: 0.5},
		{name: "login_frequency", field: "login_frequency", configKey: "login_frequency_ranges", kind: lookupRange, defaultWeight: 0.5},
	},
	FactorGeographic: {
		{name: "country", field: "country", configKey: "country_risk", kind: lookupCategory, defaultWeight: 0.7},
		{name: "residence_years", field: "residence_years", configKey: "residence_ranges", kind: lookupRange, defaultWeight: 0.3},
	},
	FactorDocument: {
		{name: "document_type", field: "document_type", configKey: "document_type_risk", kind: lookupCategory, defaultWeight: 0.4},
		{name: "authenticity_score", field: "authenticity_score", configKey: "authenticity_ranges", kind: lookupRange, defaultWeight: 0.6},
	},
	FactorIdentity: {
		{name: "verification_method", field: "verification_method", configKey: "method_risk", kind: lookupCategory, defaultWeight: 0.5},
		{name: "match_score", field: "match_score", configKey: "match_score_ranges", kind: lookupRange, defaultWeight: 0.5},
	},
	FactorTransaction: {
		{name: "expected_volume", field: "expected_volume", configKey: "volume_ranges", kind: lookupRange, defaultWeight: 0.6},
		{name: "transaction_frequency", field: "transaction_frequency", configKey: "frequency_ranges", kind: lookupRange, defaultWeight: 0.4},
	},
	FactorCompliance: {
		{name: "pep_status", field: "pep_status", configKey: "pep_risk", kind: lookupCategory, defaultWeight: 0.6},
		{name: "sanctions_hits", field: "sanctions_hits", configKey: "sanctions_ranges", kind: lookupRange, defaultWeight: 0.4},
	},
}

// AssessFactor computes a factor's score against user data: each
// sub-attribute risk is looked up in the factor config, multiplied by its
// weight, summed, and the total clamped to [0,1]. Unknown factor types score
// the default risk so a misconfigured factor degrades instead of failing the
// assessment.
func AssessFactor(factor Factor, userData map[string]any) FactorScore {
	score := FactorScore{
		FactorID:   factor.ID,
		Type:       factor.Type,
		Components: map[string]float64{},
	}

	attrs, ok := factorSubAttributes[factor.Type]
	if !ok {
		score.Score = defaultSubRisk
		score.Level = LevelFor(score.Score)
		return score
	}

	total := 0.0
	for _, attr := range attrs {
		subRisk := assessSubAttribute(attr, factor.Config, userData)
		weight := attr.defaultWeight
		if w, overridden := factor.Weights[attr.name]; overridden {
			weight = w
		}
		score.Components[attr.name] = subRisk
		total += subRisk * weight
	}

	score.Score = clamp01(total)
	score.Level = LevelFor(score.Score)
	return score
}

func assessSubAttribute(attr subAttribute, config, userData map[string]any) float64 {
	value, found := rules.ResolvePath(userData, attr.field)
	if !found || value == nil {
		return defaultSubRisk
	}

	table, ok := config[attr.configKey]
	if !ok {
		return defaultSubRisk
	}

	switch attr.kind {
	case lookupRange:
		return rangeLookup(table, value)
	case lookupCategory:
		return categoryLookup(table, value)
	default:
		return defaultSubRisk
	}
}

// rangeLookup scans an ordered list of {min, max, risk_score} entries and
// returns the first containing range.
func rangeLookup(table, value any) float64 {
	v, ok := toFloat(value)
	if !ok {
		return defaultSubRisk
	}

	entries, ok := table.([]any)
	if !ok {
		return defaultSubRisk
	}

	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		min, minOK := toFloat(entry["min"])
		max, maxOK := toFloat(entry["max"])
		riskScore, scoreOK := toFloat(entry["risk_score"])
		if !minOK || !maxOK || !scoreOK {
			continue
		}
		if v >= min && v <= max {
			return riskScore
		}
	}
	return defaultSubRisk
}

// categoryLookup indexes a map keyed by the stringified attribute value.
func categoryLookup(table, value any) float64 {
	categories, ok := table.(map[string]any)
	if !ok {
		return defaultSubRisk
	}

	risk, ok := categories[stringifyKey(value)]
	if !ok {
		return defaultSubRisk
	}
	if f, ok := toFloat(risk); ok {
		return f
	}
	return defaultSubRisk
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
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringifyKey(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	default:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
}
