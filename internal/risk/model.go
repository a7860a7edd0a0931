package risk

import "sort"

// CalculateScore aggregates factor scores into one model score: a weighted
// arithmetic mean using the model parameters, default weight 1 for factors
// the model does not name. A zero weight sum yields score 0, never a division
// by zero. This aggregation is separate from the per-factor internal
// weighting.
func CalculateScore(factorScores map[string]float64, model Model) float64 {
	if len(factorScores) == 0 {
		return 0
	}

	weightedSum := 0.0
	weightSum := 0.0
	for factorID, score := range factorScores {
		weight := 1.0
		if w, ok := model.Parameters[factorID]; ok {
			weight = w
		}
		weightedSum += score * weight
		weightSum += weight
	}

	if weightSum == 0 {
		return 0
	}
	return clamp01(weightedSum / weightSum)
}

// Assess runs every factor against the user data and aggregates through the
// model. Factor scores are ordered by factor ID for deterministic output.
func Assess(factors []Factor, model Model, userData map[string]any) Assessment {
	scores := make([]FactorScore, 0, len(factors))
	byID := make(map[string]float64, len(factors))
	for _, factor := range factors {
		fs := AssessFactor(factor, userData)
		scores = append(scores, fs)
		byID[factor.ID] = fs.Score
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].FactorID < scores[j].FactorID })

	aggregate := CalculateScore(byID, model)
	return Assessment{
		ModelID:      model.ID,
		Score:        aggregate,
		Level:        LevelFor(aggregate),
		FactorScores: scores,
	}
}

// Record renders the assessment as a condition-addressable input record so
// downstream rules and tiers can match on risk_assessment fields.
func (a Assessment) Record() map[string]any {
	factorLevels := make(map[string]any, len(a.FactorScores))
	for _, fs := range a.FactorScores {
		factorLevels[fs.FactorID] = string(fs.Level)
	}
	return map[string]any{
		"risk_score":    a.Score,
		"risk_level":    string(a.Level),
		"model_id":      a.ModelID,
		"factor_levels": factorLevels,
	}
}
