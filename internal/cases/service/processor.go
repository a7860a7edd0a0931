package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"credence/internal/cases/models"
	"credence/internal/cases/ports"
	"credence/internal/definitions"
	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/workflow"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

// Process runs a pending case to a terminal status. It is idempotent: a
// case already past pending is left alone, so the sweep and the intake
// goroutine can race safely.
func (s *Service) Process(ctx context.Context, caseID id.CaseID) error {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if c.Status != models.StatusPending {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "cases.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("case.id", c.ID.String()),
		attribute.String("case.type", string(c.Type)),
	)

	started := s.now()
	if err := c.Transition(models.StatusProcessing, started); err != nil {
		return err
	}
	if err := s.store.Update(ctx, c); err != nil {
		return err
	}

	outcome, decideErr := s.decide(ctx, c)

	finished := s.now()
	if decideErr != nil {
		span.SetStatus(codes.Error, decideErr.Error())
		c.Error = decideErr.Error()
		err = c.Transition(models.StatusFailed, finished)
	} else {
		c.Outcome = outcome
		if outcome.Workflow != nil && outcome.Workflow.Status == workflow.TrackerFailed {
			c.Error = outcome.Workflow.FailureReason
			err = c.Transition(models.StatusFailed, finished)
		} else {
			err = c.Transition(models.StatusCompleted, finished)
		}
	}
	if err != nil {
		return err
	}

	if err := s.store.Update(ctx, c); err != nil {
		span.SetStatus(codes.Error, "persist outcome")
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateCase(ctx, c.ID); err != nil {
			s.logger.Warn("case cache invalidation failed", "case_id", c.ID, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveCaseFinished(string(c.Type), c.Status == models.StatusFailed, finished.Sub(started))
		if c.Outcome != nil {
			s.metrics.AddViolations(len(c.Outcome.Violations))
		}
	}
	s.logger.Info("case finished",
		"case_id", c.ID,
		"type", c.Type,
		"status", c.Status,
		"elapsed", finished.Sub(started),
	)
	return nil
}

// decide dispatches one case through its pipeline. The returned error marks
// an infrastructure failure; a negative decision is a completed case with
// Passed false.
func (s *Service) decide(ctx context.Context, c *models.Case) (outcome *models.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = dErrors.Newf(dErrors.CodeInternal, "case processing panic: %v", r)
		}
	}()

	snapshot := s.provider.Current()

	switch c.Type {
	case models.CaseComplianceCheck:
		return s.decideCompliance(ctx, c, snapshot), nil
	case models.CaseRiskAssessment:
		return s.decideRisk(ctx, c, snapshot), nil
	case models.CaseTierAssignment:
		return s.decideTier(ctx, c, snapshot)
	case models.CaseDocumentVerification:
		return s.decideVerification(ctx, c, snapshot, rules.ConditionDocumentVerification), nil
	case models.CaseIdentityVerification:
		return s.decideVerification(ctx, c, snapshot, rules.ConditionIdentityVerification), nil
	case models.CaseOnboarding:
		return s.decideOnboarding(ctx, c, snapshot)
	}
	return nil, dErrors.Newf(dErrors.CodeConfiguration, "no pipeline for case type %s", c.Type)
}

func (s *Service) decideCompliance(ctx context.Context, c *models.Case, snapshot *definitions.Snapshot) *models.Outcome {
	ruleResults := s.engine.EvaluateAll(snapshot.Rules, c.Inputs)
	regResults := s.engine.CheckAllRegulations(snapshot.Regulations, c.Inputs)
	violations := rules.DeriveViolations(ruleResults, regResults)

	outcome := &models.Outcome{
		Passed:          len(violations) == 0,
		RuleResults:     ruleResults,
		Regulations:     regResults,
		Violations:      violations,
		Recommendations: rules.DeriveRecommendations(violations),
	}
	s.publish(ctx, ports.EventCheckCompleted, c, map[string]any{
		"passed":     outcome.Passed,
		"violations": len(violations),
	})
	return outcome
}

func (s *Service) decideRisk(ctx context.Context, c *models.Case, snapshot *definitions.Snapshot) *models.Outcome {
	assessment := s.assess(c, snapshot)

	outcome := &models.Outcome{
		Passed:          assessment.Level != risk.LevelHigh,
		Assessment:      &assessment,
		Recommendations: risk.Recommendations(assessment),
	}
	s.publish(ctx, ports.EventAssessmentCompleted, c, map[string]any{
		"risk_score": assessment.Score,
		"risk_level": string(assessment.Level),
	})
	return outcome
}

// decideTier runs a fresh risk assessment first so tier requirements that
// reference risk_level always see current data, then resolves the tier.
func (s *Service) decideTier(ctx context.Context, c *models.Case, snapshot *definitions.Snapshot) (*models.Outcome, error) {
	assessment := s.assess(c, snapshot)
	c.Inputs.RiskAssessment = assessment.Record()

	result, err := s.resolver.DetermineTier(snapshot.Tiers, c.Inputs)
	if err != nil {
		return nil, err
	}

	outcome := &models.Outcome{
		Passed:     true,
		Assessment: &assessment,
		Tier:       &result,
	}
	s.publish(ctx, ports.EventCheckCompleted, c, map[string]any{
		"tier":              result.Tier.ID,
		"eligibility_score": result.EligibilityScore,
	})
	return outcome, nil
}

// decideVerification settles document or identity verification cases from
// the submitted verification record, then layers the rule set on top so a
// verified document for a sanctioned user still surfaces violations.
func (s *Service) decideVerification(ctx context.Context, c *models.Case, snapshot *definitions.Snapshot, condType rules.ConditionType) *models.Outcome {
	record := c.Inputs.Record(condType)
	verified := record != nil && record["status"] == "verified"

	ruleResults := s.engine.EvaluateAll(snapshot.Rules, c.Inputs)
	violations := rules.DeriveViolations(ruleResults, nil)

	outcome := &models.Outcome{
		Passed:          verified && len(violations) == 0,
		RuleResults:     ruleResults,
		Violations:      violations,
		Recommendations: rules.DeriveRecommendations(violations),
	}
	s.publish(ctx, ports.EventCheckCompleted, c, map[string]any{
		"verified": verified,
		"passed":   outcome.Passed,
	})
	return outcome
}

func (s *Service) decideOnboarding(ctx context.Context, c *models.Case, snapshot *definitions.Snapshot) (*models.Outcome, error) {
	workflowID, _ := c.Metadata["workflow_id"].(string)
	def, ok := snapshot.Workflow(workflowID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "workflow %s not found", workflowID)
	}

	results := &onboardingResults{}
	engine, err := workflow.NewEngine(
		s.workflowHandlers(c, snapshot, results),
		workflow.WithLogger(s.logger),
		workflow.WithSignals(&caseSignals{service: s, c: c}),
		workflow.WithCheckpoint(s.checkpointTracker(c)),
		workflow.WithClock(s.now),
	)
	if err != nil {
		return nil, err
	}

	tracker := engine.NewTracker(workflow.Tracker{
		ID:       c.ID,
		UserID:   c.UserID,
		UserData: c.Inputs.UserData,
	}, def)

	if err := engine.Run(ctx, def, snapshot.Milestones, tracker); err != nil {
		return nil, err
	}

	outcome := &models.Outcome{
		Passed:     tracker.Status == workflow.TrackerCompleted,
		Workflow:   tracker,
		Assessment: results.assessment,
		Tier:       results.tier,
		Violations: results.violations,
	}
	return outcome, nil
}

// assess evaluates the configured factors under the case's model choice.
func (s *Service) assess(c *models.Case, snapshot *definitions.Snapshot) risk.Assessment {
	modelID, _ := c.Metadata["model_id"].(string)
	return risk.Assess(snapshot.Factors, snapshot.Model(modelID), c.Inputs.UserData)
}

// caseSignals forwards workflow lifecycle to case events and metrics.
type caseSignals struct {
	service *Service
	c       *models.Case
}

func (cs *caseSignals) WorkflowCompleted(ctx context.Context, tracker *workflow.Tracker) {
	cs.service.publish(ctx, ports.EventWorkflowCompleted, cs.c, map[string]any{
		"workflow_id": tracker.WorkflowID,
		"steps":       len(tracker.CompletedSteps),
	})
}

func (cs *caseSignals) WorkflowFailed(ctx context.Context, tracker *workflow.Tracker, reason string) {
	cs.service.publish(ctx, ports.EventWorkflowFailed, cs.c, map[string]any{
		"workflow_id": tracker.WorkflowID,
		"reason":      reason,
	})
}

func (cs *caseSignals) MilestoneAchieved(ctx context.Context, tracker *workflow.Tracker, m workflow.Milestone) {
	if cs.service.metrics != nil {
		cs.service.metrics.MilestonesAchieved.Inc()
	}
	cs.service.publish(ctx, ports.EventMilestoneAchieved, cs.c, map[string]any{
		"milestone_id": m.ID,
		"milestone":    m.Name,
		"progress":     tracker.ProgressPercentage,
	})
}

// checkpointTracker persists workflow progress onto the case after every
// step, so a crashed run resumes from its last completed step.
func (s *Service) checkpointTracker(c *models.Case) workflow.Checkpoint {
	return func(ctx context.Context, tracker *workflow.Tracker) error {
		snapshot := *tracker
		if c.Outcome == nil {
			c.Outcome = &models.Outcome{}
		}
		c.Outcome.Workflow = &snapshot
		c.UpdatedAt = s.now()
		return s.store.Update(ctx, c)
	}
}

