package service

import (
	"context"
	"fmt"

	"credence/internal/cases/models"
	"credence/internal/definitions"
	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/tier"
	"credence/internal/workflow"
)

// onboardingResults collects the structured decisions made by evaluation
// steps during one workflow run, so the case outcome can surface them
// without digging through step outputs.
type onboardingResults struct {
	assessment *risk.Assessment
	tier       *tier.Result
	violations []rules.Violation
}

// workflowHandlers extends the dependency-free base handlers with the five
// evaluation steps that need the decision tables and the case's inputs.
func (s *Service) workflowHandlers(c *models.Case, snapshot *definitions.Snapshot, results *onboardingResults) map[workflow.StepType]workflow.Handler {
	handlers := workflow.BaseHandlers(s.logger)

	handlers[workflow.StepDocumentVerification] = verificationStep(c, rules.ConditionDocumentVerification, "document")
	handlers[workflow.StepIdentityVerification] = verificationStep(c, rules.ConditionIdentityVerification, "identity")

	handlers[workflow.StepRiskAssessment] = workflow.HandlerFunc(func(_ context.Context, _ workflow.Step, tracker *workflow.Tracker) (workflow.StepResult, error) {
		assessment := s.assess(c, snapshot)
		results.assessment = &assessment
		// Later steps and conditions read the assessment through the
		// shared records.
		c.Inputs.RiskAssessment = assessment.Record()
		tracker.UserData["risk_level"] = string(assessment.Level)
		tracker.UserData["risk_score"] = assessment.Score
		return workflow.StepResult{Success: true, Output: assessment.Record()}, nil
	})

	handlers[workflow.StepComplianceCheck] = workflow.HandlerFunc(func(_ context.Context, _ workflow.Step, _ *workflow.Tracker) (workflow.StepResult, error) {
		ruleResults := s.engine.EvaluateAll(snapshot.Rules, c.Inputs)
		regResults := s.engine.CheckAllRegulations(snapshot.Regulations, c.Inputs)
		violations := rules.DeriveViolations(ruleResults, regResults)
		results.violations = violations

		if len(violations) > 0 {
			return workflow.StepResult{
				Success: false,
				Message: fmt.Sprintf("compliance check found %d violation(s)", len(violations)),
				Output:  map[string]any{"violations": len(violations)},
			}, nil
		}
		return workflow.StepResult{Success: true, Output: map[string]any{"violations": 0}}, nil
	})

	handlers[workflow.StepTierAssignment] = workflow.HandlerFunc(func(_ context.Context, _ workflow.Step, tracker *workflow.Tracker) (workflow.StepResult, error) {
		result, err := s.resolver.DetermineTier(snapshot.Tiers, c.Inputs)
		if err != nil {
			return workflow.StepResult{}, err
		}
		results.tier = &result
		tracker.UserData["assigned_tier"] = result.Tier.ID
		return workflow.StepResult{Success: true, Output: map[string]any{
			"tier":              result.Tier.ID,
			"level":             result.Tier.Level,
			"eligibility_score": result.EligibilityScore,
		}}, nil
	})

	return handlers
}

// verificationStep passes when the named verification record reports
// verified status. Verification itself happens upstream; the workflow only
// gates on its result.
func verificationStep(c *models.Case, condType rules.ConditionType, label string) workflow.Handler {
	return workflow.HandlerFunc(func(_ context.Context, _ workflow.Step, _ *workflow.Tracker) (workflow.StepResult, error) {
		record := c.Inputs.Record(condType)
		status, _ := record["status"].(string)
		if status != "verified" {
			return workflow.StepResult{
				Success: false,
				Message: fmt.Sprintf("%s verification not complete (status %q)", label, status),
			}, nil
		}
		return workflow.StepResult{Success: true, Output: map[string]any{"status": status}}, nil
	})
}
