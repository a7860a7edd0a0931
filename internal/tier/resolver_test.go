package tier

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"credence/internal/rules"
)

// =============================================================================
// Tier Resolver Test Suite
// =============================================================================
// Justification for unit tests: highest-first selection with lowest-tier
// fallback is an ordering contract that is awkward to pin down end to end.

type ResolverSuite struct {
	suite.Suite
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.resolver = NewResolver()
}

func threeTiers() []Tier {
	return []Tier{
		{ID: "basic", Name: "Basic", Level: 1, Requirements: map[string]any{
			"min_age": 18,
		}},
		{ID: "standard", Name: "Standard", Level: 2, Requirements: map[string]any{
			"min_income":            50000,
			"document_verification": true,
		}},
		{ID: "premium", Name: "Premium", Level: 3, Requirements: map[string]any{
			"min_income":            150000,
			"min_net_worth":         500000,
			"risk_level":            "low",
			"identity_verification": true,
		}},
	}
}

func (s *ResolverSuite) TestEligibilityScore() {
	s.Run("met over applicable, unconfigured keys skipped", func() {
		t := Tier{ID: "t", Requirements: map[string]any{
			"min_income":            10000,
			"document_verification": true,
		}}
		score, met := s.resolver.EligibilityScore(t, rules.Inputs{
			UserData:             map[string]any{"income": 15000},
			DocumentVerification: map[string]any{"status": "verified"},
		})
		s.Equal(1.0, score)
		s.True(met["min_income"])
		s.True(met["document_verification"])
	})

	s.Run("unknown requirement keys never count", func() {
		t := Tier{ID: "t", Requirements: map[string]any{
			"min_income":        10000,
			"quantum_clearance": true,
		}}
		score, _ := s.resolver.EligibilityScore(t, rules.Inputs{
			UserData: map[string]any{"income": 15000},
		})
		s.Equal(1.0, score)
	})

	s.Run("partial satisfaction is a ratio", func() {
		t := Tier{ID: "t", Requirements: map[string]any{
			"min_income": 10000,
			"min_age":    21,
		}}
		score, met := s.resolver.EligibilityScore(t, rules.Inputs{
			UserData: map[string]any{"income": 15000, "age": 19},
		})
		s.Equal(0.5, score)
		s.False(met["min_age"])
	})
}

func (s *ResolverSuite) TestRequirementEvaluators() {
	s.Run("risk_level is an at-or-below ordinal comparison", func() {
		t := Tier{ID: "t", Requirements: map[string]any{"risk_level": "medium"}}

		score, _ := s.resolver.EligibilityScore(t, rules.Inputs{
			RiskAssessment: map[string]any{"risk_level": "low"},
		})
		s.Equal(1.0, score)

		score, _ = s.resolver.EligibilityScore(t, rules.Inputs{
			RiskAssessment: map[string]any{"risk_level": "high"},
		})
		s.Equal(0.0, score)
	})

	s.Run("membership requirements", func() {
		t := Tier{ID: "t", Requirements: map[string]any{
			"employment_status": []any{"employed", "self_employed"},
			"allowed_countries": []any{"US", "GB"},
		}}
		score, _ := s.resolver.EligibilityScore(t, rules.Inputs{
			UserData: map[string]any{"employment_status": "self_employed", "country": "GB"},
		})
		s.Equal(1.0, score)
	})

	s.Run("required lists must all be present", func() {
		t := Tier{ID: "t", Requirements: map[string]any{
			"required_documents": []any{"passport", "proof_of_address"},
		}}
		score, _ := s.resolver.EligibilityScore(t, rules.Inputs{
			UserData: map[string]any{"documents": []any{"passport"}},
		})
		s.Equal(0.0, score)

		score, _ = s.resolver.EligibilityScore(t, rules.Inputs{
			UserData: map[string]any{"documents": []any{"passport", "proof_of_address", "selfie"}},
		})
		s.Equal(1.0, score)
	})

	s.Run("compliance checks must all be true", func() {
		t := Tier{ID: "t", Requirements: map[string]any{
			"compliance_checks": []any{"aml", "sanctions"},
		}}
		score, _ := s.resolver.EligibilityScore(t, rules.Inputs{
			UserData: map[string]any{"compliance_checks": map[string]any{"aml": true, "sanctions": false}},
		})
		s.Equal(0.0, score)
	})

	s.Run("missing data never satisfies a requirement", func() {
		t := Tier{ID: "t", Requirements: map[string]any{"min_income": 1}}
		score, _ := s.resolver.EligibilityScore(t, rules.Inputs{})
		s.Equal(0.0, score)
	})
}

func (s *ResolverSuite) TestDetermineTier() {
	s.Run("selects the highest qualifying tier", func() {
		inputs := rules.Inputs{
			UserData:             map[string]any{"income": 200000, "net_worth": 600000, "age": 30},
			RiskAssessment:       map[string]any{"risk_level": "very_low"},
			DocumentVerification: map[string]any{"status": "verified"},
			IdentityVerification: map[string]any{"status": "verified"},
		}
		result, err := s.resolver.DetermineTier(threeTiers(), inputs)
		s.Require().NoError(err)
		s.Equal("premium", result.Tier.ID)
		s.Equal(1.0, result.EligibilityScore)
		s.Empty(result.Considered)
	})

	s.Run("returns level 1 when only level 1 passes, despite higher tiers tried first", func() {
		inputs := rules.Inputs{
			UserData: map[string]any{"income": 1000, "age": 25},
		}
		result, err := s.resolver.DetermineTier(threeTiers(), inputs)
		s.Require().NoError(err)
		s.Equal("basic", result.Tier.ID)
		s.Equal(1, result.Tier.Level)
		s.Len(result.Considered, 2)
	})

	s.Run("falls back to the lowest level when nothing passes", func() {
		inputs := rules.Inputs{
			UserData: map[string]any{"age": 15},
		}
		result, err := s.resolver.DetermineTier(threeTiers(), inputs)
		s.Require().NoError(err)
		s.Equal("basic", result.Tier.ID)
		s.Equal("no higher tier requirements met", result.Reason)
	})

	s.Run("tier threshold below 1 admits partial matches", func() {
		tiers := []Tier{
			{ID: "low", Level: 1},
			{ID: "mid", Level: 2, MinEligibilityScore: 0.5, Requirements: map[string]any{
				"min_income": 10000,
				"min_age":    65,
			}},
		}
		result, err := s.resolver.DetermineTier(tiers, rules.Inputs{
			UserData: map[string]any{"income": 20000, "age": 30},
		})
		s.Require().NoError(err)
		s.Equal("mid", result.Tier.ID)
		s.Equal(0.5, result.EligibilityScore)
	})

	s.Run("no tiers is an error", func() {
		_, err := s.resolver.DetermineTier(nil, rules.Inputs{})
		s.Error(err)
	})
}
