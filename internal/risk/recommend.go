package risk

import (
	"fmt"

	"credence/internal/rules"
)

// Recommendations derives follow-up actions from an assessment: every factor
// at high produces a high-priority reduction recommendation, medium produces
// a monitoring one, and a high or medium aggregate adds one general
// recommendation.
func Recommendations(a Assessment) []rules.Recommendation {
	var recs []rules.Recommendation

	for _, fs := range a.FactorScores {
		switch fs.Level {
		case LevelHigh:
			recs = append(recs, rules.Recommendation{
				Type:        "risk_reduction",
				Priority:    rules.SeverityHigh,
				Description: fmt.Sprintf("%s risk factor scored high (%.2f)", fs.Type, fs.Score),
				Action:      fmt.Sprintf("require enhanced due diligence on %s attributes", fs.Type),
			})
		case LevelMedium:
			recs = append(recs, rules.Recommendation{
				Type:        "risk_monitoring",
				Priority:    rules.SeverityMedium,
				Description: fmt.Sprintf("%s risk factor scored medium (%.2f)", fs.Type, fs.Score),
				Action:      fmt.Sprintf("schedule periodic review of %s attributes", fs.Type),
			})
		}
	}

	switch a.Level {
	case LevelHigh:
		recs = append(recs, rules.Recommendation{
			Type:        "general",
			Priority:    rules.SeverityHigh,
			Description: fmt.Sprintf("aggregate risk is high (%.2f)", a.Score),
			Action:      "route to manual compliance review before approval",
		})
	case LevelMedium:
		recs = append(recs, rules.Recommendation{
			Type:        "general",
			Priority:    rules.SeverityMedium,
			Description: fmt.Sprintf("aggregate risk is medium (%.2f)", a.Score),
			Action:      "enable transaction monitoring for the first 90 days",
		})
	}

	return recs
}
