package definitions

import (
	"time"

	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/tier"
	"credence/internal/workflow"
)

// Defaults returns the built-in definition set used when neither a store nor
// a bundle directory is configured. It is a working baseline, not a policy
// recommendation.
func Defaults() *Snapshot {
	minProgress := func(p int) *int { return &p }

	s := &Snapshot{
		Source:   "builtin",
		LoadedAt: time.Now(),
		Rules: []rules.Rule{
			{
				ID:       "rule-sanctioned-country",
				Name:     "no sanctioned jurisdiction residency",
				Priority: 10,
				Conditions: []rules.Condition{
					{Type: rules.ConditionUserData, Field: "country", Operator: rules.OpNotIn,
						Value: []any{"KP", "IR", "SY", "CU"}},
				},
				Actions: map[string]map[string]any{
					string(rules.ActionUpdateRiskScore): {"adjustment": -0.05, "reason": "jurisdiction screen clear"},
				},
			},
			{
				ID:       "rule-identity-assurance",
				Name:     "identity assurance for elevated risk",
				Priority: 20,
				Conditions: []rules.Condition{
					{
						Type:          rules.ConditionCombined,
						LogicOperator: rules.LogicOr,
						SubConditions: []rules.Condition{
							{Type: rules.ConditionRiskAssessment, Field: "risk_level", Operator: rules.OpNotIn,
								Value: []any{"high"}},
							{Type: rules.ConditionIdentityVerification, Field: "status", Operator: rules.OpEquals,
								Value: "verified"},
						},
					},
				},
				Actions: map[string]map[string]any{
					string(rules.ActionCreateRecommendation): {"text": "identity assurance satisfied"},
				},
			},
		},
		Regulations: []rules.Regulation{
			{
				ID:           "reg-kyc-baseline",
				Name:         "KYC baseline",
				Jurisdiction: "global",
				Priority:     10,
				Requirements: map[string]rules.Requirement{
					"adult_customer": {Type: rules.ConditionUserData, Field: "age",
						Operator: rules.OpGreaterThanOrEqual, Value: 18},
					"document_verified": {Type: rules.ConditionDocumentVerification, Field: "status",
						Operator: rules.OpEquals, Value: "verified"},
				},
				Penalties: map[string]any{"account_restriction": true, "reporting_required": true},
			},
		},
		Factors: []risk.Factor{
			{
				ID:   "factor-financial",
				Type: risk.FactorFinancial,
				Config: map[string]any{
					"income_ranges": []any{
						map[string]any{"min": 0, "max": 24999, "risk_score": 0.7},
						map[string]any{"min": 25000, "max": 99999, "risk_score": 0.4},
						map[string]any{"min": 100000, "max": 100000000, "risk_score": 0.2},
					},
					"credit_score_ranges": []any{
						map[string]any{"min": 300, "max": 579, "risk_score": 0.8},
						map[string]any{"min": 580, "max": 739, "risk_score": 0.4},
						map[string]any{"min": 740, "max": 850, "risk_score": 0.1},
					},
				},
			},
			{
				ID:   "factor-geographic",
				Type: risk.FactorGeographic,
				Config: map[string]any{
					"country_risk": map[string]any{
						"US": 0.1, "GB": 0.1, "DE": 0.1, "FR": 0.15,
						"RU": 0.8, "KP": 1.0, "IR": 1.0,
					},
				},
				Weights: map[string]float64{"country": 0.8, "residence_years": 0.2},
			},
			{
				ID:   "factor-compliance",
				Type: risk.FactorCompliance,
				Config: map[string]any{
					"pep_risk": map[string]any{"true": 0.9, "false": 0.1},
					"sanctions_ranges": []any{
						map[string]any{"min": 0, "max": 0, "risk_score": 0.0},
						map[string]any{"min": 1, "max": 1000, "risk_score": 1.0},
					},
				},
			},
		},
		Models: []risk.Model{
			{
				ID: "model-onboarding",
				Parameters: map[string]float64{
					"factor-financial":  1.0,
					"factor-geographic": 1.5,
					"factor-compliance": 2.0,
				},
			},
		},
		Tiers: []tier.Tier{
			{
				ID: "tier-basic", Name: "Basic", Level: 1,
				Requirements: map[string]any{"min_age": 18},
				Benefits:     []string{"deposits", "balance_view"},
				Restrictions: []string{"daily_limit_1000"},
			},
			{
				ID: "tier-standard", Name: "Standard", Level: 2,
				Requirements: map[string]any{
					"min_age":               18,
					"document_verification": true,
					"risk_level":            "medium",
				},
				Benefits: []string{"deposits", "withdrawals", "cards"},
			},
			{
				ID: "tier-premium", Name: "Premium", Level: 3,
				Requirements: map[string]any{
					"min_income":            100000,
					"document_verification": true,
					"identity_verification": true,
					"risk_level":            "low",
				},
				Benefits: []string{"deposits", "withdrawals", "cards", "margin_trading"},
			},
		},
		Workflows: []workflow.Definition{
			{
				ID:    "wf-onboarding",
				Name:  "customer onboarding",
				Order: 1,
				Steps: []workflow.Step{
					{Name: "collect_profile", Type: workflow.StepDataCollection,
						Config: map[string]any{"required_fields": []any{"name", "age", "country"}}},
					{Name: "verify_documents", Type: workflow.StepDocumentVerification},
					{Name: "verify_identity", Type: workflow.StepIdentityVerification},
					{Name: "assess_risk", Type: workflow.StepRiskAssessment},
					{Name: "check_compliance", Type: workflow.StepComplianceCheck},
					{Name: "assign_tier", Type: workflow.StepTierAssignment},
					{Name: "approve", Type: workflow.StepApproval},
					{Name: "welcome", Type: workflow.StepNotification,
						Config: map[string]any{"template": "welcome"}},
				},
			},
		},
		Milestones: []workflow.Milestone{
			{
				ID: "ms-identity-established", Name: "identity established",
				Requirements: workflow.MilestoneRequirements{
					RequiredSteps: []string{"verify_documents", "verify_identity"},
				},
			},
			{
				ID: "ms-halfway", Name: "halfway there",
				Requirements: workflow.MilestoneRequirements{
					MinProgressPercentage: minProgress(50),
				},
			},
			{
				ID: "ms-fully-onboarded", Name: "fully onboarded",
				Requirements: workflow.MilestoneRequirements{
					MinProgressPercentage: minProgress(100),
					RequiredSteps:         []string{"approve"},
				},
			},
		},
	}
	s.normalize()
	return s
}
