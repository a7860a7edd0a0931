package rules

import "fmt"

// DeriveViolations converts failed rules and non-compliant regulations into
// violation records. Rules map to medium severity, regulations to high.
func DeriveViolations(ruleResults []RuleResult, regResults []RegulationResult) []Violation {
	var violations []Violation

	for _, rr := range ruleResults {
		if rr.Status != RuleFailed {
			continue
		}
		violations = append(violations, Violation{
			Type:        ViolationComplianceRule,
			SourceID:    rr.RuleID,
			SourceName:  rr.Name,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("compliance rule %q not satisfied", rr.Name),
			Details:     map[string]any{"failed_conditions": unmetConditions(rr.ConditionResults)},
		})
	}

	for _, reg := range regResults {
		if reg.Status != RegulationNonCompliant {
			continue
		}
		violations = append(violations, Violation{
			Type:        ViolationRegulation,
			SourceID:    reg.RegulationID,
			SourceName:  reg.Name,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("regulation %q (%s) not complied with", reg.Name, reg.Jurisdiction),
			Details:     map[string]any{"penalties": reg.Penalties},
		})
	}

	return violations
}

// DeriveRecommendations produces one tailored recommendation per violation,
// or a single low-priority maintenance recommendation when the case is clean.
func DeriveRecommendations(violations []Violation) []Recommendation {
	if len(violations) == 0 {
		return []Recommendation{{
			Type:        "maintenance",
			Priority:    SeverityLow,
			Description: "no compliance violations found",
			Action:      "maintain current compliance posture",
		}}
	}

	recs := make([]Recommendation, 0, len(violations))
	for _, v := range violations {
		switch v.Type {
		case ViolationRegulation:
			recs = append(recs, Recommendation{
				Type:        "regulatory_remediation",
				Priority:    SeverityHigh,
				Description: fmt.Sprintf("remediate non-compliance with %s", v.SourceName),
				Action:      "collect missing regulatory evidence and re-run the check",
			})
		default:
			recs = append(recs, Recommendation{
				Type:        "compliance_review",
				Priority:    SeverityMedium,
				Description: fmt.Sprintf("review failed rule %s", v.SourceName),
				Action:      "resolve the failed conditions and re-run the check",
			})
		}
	}
	return recs
}

func unmetConditions(results []ConditionResult) []string {
	var fields []string
	for _, cr := range results {
		if !cr.Met {
			field := cr.Field
			if field == "" {
				field = string(cr.Type)
			}
			fields = append(fields, field)
		}
	}
	return fields
}
